// Package daemon coordinates the long-running siksha process.
//
// It wires configuration, the progress store, the lesson orchestrator and
// the run registry into a single lifecycle with flock-based locking to
// prevent multiple instances, and serves the JSON API and the generated
// videos over HTTP.
//
// Keep orchestration logic here: individual pipeline stages live in their
// own packages while the daemon focuses on startup, shutdown, request
// admission and high level coordination.
package daemon
