package workflow

import (
	"context"
	"strings"

	"siksha/internal/logging"
	"siksha/internal/services"
)

// fail records the terminal state for cause. Cancellation becomes a
// cancelled record; everything else is an error record carrying the
// classified kind and the last published progress.
func (o *Orchestrator) fail(ctx context.Context, r *run, cause error) (Outcome, error) {
	details := services.Details(cause)
	logger := logging.WithContext(services.WithStage(ctx, r.stage), r.logger)

	if details.Kind == services.KindCancelled {
		r.state = StateCancelled
		if err := r.publisher.Cancel(ctx); err != nil {
			logger.Warn("cancellation status not persisted", logging.Error(err))
		}
		logger.Info("lesson cancelled",
			logging.String(logging.FieldEventType, "lesson_cancelled"),
			logging.Int("last_progress", r.publisher.Last().Progress),
		)
		o.notifyCancelled(ctx, r)
		o.record(r.key, cause)
		return r.outcome(), cause
	}

	r.state = StateFailed
	message := failureMessage(r.stage, details)
	if err := r.publisher.Fail(ctx, message, string(details.Kind)); err != nil {
		logger.Warn("failure status not persisted", logging.Error(err))
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String("error_message", message),
		logging.Int("last_progress", r.publisher.Last().Progress),
		logging.Error(cause),
	)
	o.notifyFailure(ctx, r, message)
	o.record(r.key, cause)
	return r.outcome(), cause
}

func failureMessage(stageName string, details services.ErrorDetails) string {
	if message := strings.TrimSpace(details.Message); message != "" {
		return message
	}
	if stageName != "" {
		return stageName + " failed without error detail"
	}
	return "workflow failed without error detail"
}
