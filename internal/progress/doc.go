// Package progress stores the latest status record of every lesson run.
//
// A run publishes through a Publisher, which keeps the percentage monotonic
// and stamps each record. Pollers read records through a Store: the memory
// backend serves a single daemon process, and the SQLite backend keeps
// statuses across restarts and lets the CLI read them directly.
package progress
