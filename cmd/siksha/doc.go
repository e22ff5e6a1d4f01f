// Package main hosts the siksha CLI.
//
// Lesson commands talk to a running sikshad over its HTTP API. The run
// command executes the pipeline in-process for one lesson without a daemon,
// and config/deps work entirely offline.
package main
