package stage

import (
	"context"

	"siksha/internal/artifacts"
	"siksha/internal/audience"
)

// Reporter receives progress for the stage currently executing. The
// orchestrator binds the step number; stages supply percent and text.
type Reporter func(ctx context.Context, percent int, message, substep string)

// Job is one lesson run as seen by a stage.
type Job struct {
	Key       string
	RequestID string
	Topic     string
	Audience  audience.Level
	Interests []string
	Layout    artifacts.Layout

	// Prompts and Script carry results forward so later stages need not
	// reread files written earlier in the same run.
	Prompts []string
	Script  []string

	report Reporter
}

// WithReporter returns a shallow copy of j reporting through fn.
func (j *Job) WithReporter(fn Reporter) *Job {
	clone := *j
	clone.report = fn
	return &clone
}

// Report publishes progress when a reporter is bound.
func (j *Job) Report(ctx context.Context, percent int, message, substep string) {
	if j == nil || j.report == nil {
		return
	}
	j.report(ctx, percent, message, substep)
}
