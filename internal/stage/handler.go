package stage

import (
	"context"
	"log/slog"
)

// Handler describes the contract the orchestrator needs from each stage.
type Handler interface {
	Prepare(context.Context, *Job) error
	Execute(context.Context, *Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the run-scoped logger before Prepare.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
