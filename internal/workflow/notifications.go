package workflow

import (
	"context"

	"siksha/internal/logging"
	"siksha/internal/notifications"
)

func (o *Orchestrator) notifyCompleted(ctx context.Context, r *run, outcome Outcome) {
	o.notify(ctx, r, notifications.EventLessonCompleted, notifications.Payload{
		"topic":    r.req.Topic,
		"audience": r.req.Level().String(),
		"videoURL": outcome.VideoURL,
		"duration": outcome.Duration,
	})
}

func (o *Orchestrator) notifyFailure(ctx context.Context, r *run, message string) {
	o.notify(ctx, r, notifications.EventLessonFailed, notifications.Payload{
		"topic": r.req.Topic,
		"stage": r.stage,
		"error": message,
	})
}

func (o *Orchestrator) notifyCancelled(ctx context.Context, r *run) {
	o.notify(ctx, r, notifications.EventLessonCancelled, notifications.Payload{
		"topic": r.req.Topic,
	})
}

// notify delivers even when the run context was cancelled; a failed push is
// only worth a debug line.
func (o *Orchestrator) notify(ctx context.Context, r *run, event notifications.Event, payload notifications.Payload) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WithContext(ctx, r.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
