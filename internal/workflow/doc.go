// Package workflow drives one lesson run through the six pipeline stages.
//
// The Orchestrator owns the state machine Init, PromptsReady, ImagesReady,
// ScriptReady, AudioReady, VideoAssembled and Muxed, with Failed and
// Cancelled as absorbing states. Each stage is a stage.Handler registered
// through StageSet; the orchestrator publishes the stage-start progress
// record, binds a reporter so the stage can publish substeps, and turns the
// first stage error into a classified failure record and a notification.
//
// Runs never panic out of Run: a panicking stage is recovered and recorded
// as a failure. Concurrency across runs belongs to internal/runs; this
// package executes a single run synchronously.
package workflow
