// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run keys, stage names, provider names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every failure carries a
//     kind (external tool, timeout, malformed output, missing artifact,
//     resource exhausted) that Classify and Details can recover later.
//
// Use these helpers when wiring new stage logic so failure reporting stays
// uniform across the pipeline.
package services
