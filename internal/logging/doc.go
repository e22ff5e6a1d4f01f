// Package logging assembles structured slog loggers and formatting helpers used
// across siksha.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, applies per-stage level overrides, and exposes context-aware
// helpers so stage code tags every line with the run key, stage, provider and
// correlation ID. A no-op logger is provided for tests.
package logging
