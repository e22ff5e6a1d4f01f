// Package api defines the wire format of the daemon's HTTP API and a client
// for it.
//
// # Key Types
//
// LessonRequest: topic, audience and interests, or an explicit folder for
// the lookup endpoints.
//
// ProgressStatus: the progress record clients poll while a lesson renders.
//
// VideoStatus: completion check with the public URL and the is_recent flag.
//
// DaemonStatus: orchestrator diagnostics, stage health and dependencies.
//
// # Converters
//
// FromProgress: progress.Status -> ProgressStatus.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus, with stage
// health in pipeline order.
//
// # Design Notes
//
// Field names follow the snake_case keys browser clients of the original
// lesson service already read (video_url, is_recent, request_id), so the
// daemon can sit behind an existing front end.
package api
