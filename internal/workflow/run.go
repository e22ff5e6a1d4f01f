package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"siksha/internal/artifacts"
	"siksha/internal/logging"
	"siksha/internal/progress"
	"siksha/internal/services"
	"siksha/internal/stage"
)

const (
	initialMessage = "Initializing..."
	// progressLogBucket is the percentage width between logged updates
	// within one stage.
	progressLogBucket = 10
)

// run is the mutable state of one Run call.
type run struct {
	req       Request
	key       string
	requestID string
	layout    artifacts.Layout
	publisher *progress.Publisher
	sampler   *logging.ProgressSampler
	logger    *slog.Logger
	started   time.Time
	state     State
	stage     string
	step      atomic.Int32
	videoURL  string
}

func (r *run) outcome() Outcome {
	return Outcome{
		Key:       r.key,
		RequestID: r.requestID,
		State:     r.state,
		VideoURL:  r.videoURL,
		Duration:  time.Since(r.started),
	}
}

// Run executes every stage for req and blocks until the lesson is muxed,
// fails or ctx is cancelled. The returned error is the first stage error;
// the progress store already holds the matching terminal record.
func (o *Orchestrator) Run(ctx context.Context, req Request) (outcome Outcome, err error) {
	req, err = req.Normalize()
	if err != nil {
		return Outcome{State: StateFailed}, err
	}

	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = services.WithRequestID(ctx, requestID)
	}
	key := req.Folder()
	ctx = services.WithRunKey(ctx, key)

	r := &run{
		req:       req,
		key:       key,
		requestID: requestID,
		layout:    o.Layout(key),
		publisher: progress.NewPublisher(o.store, key, requestID),
		sampler:   logging.NewProgressSampler(progressLogBucket),
		logger:    logging.NewComponentLogger(o.logger, "workflow"),
		started:   time.Now(),
		state:     StateInit,
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.WithContext(ctx, r.logger).Error("stage panicked",
				logging.String(logging.FieldStage, r.stage),
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldEventType, "stage_panic"),
			)
			outcome, err = o.fail(ctx, r, fmt.Errorf("stage %s panicked: %v", r.stage, rec))
		}
	}()

	o.publish(ctx, r, 0, 0, initialMessage, "")
	logging.WithContext(ctx, r.logger).Info("lesson started",
		logging.String("topic", req.Topic),
		logging.String("audience", req.Level().String()),
		logging.Any("interests", req.Interests),
		logging.String(logging.FieldEventType, "lesson_start"),
	)

	stages := o.pipelineStages()
	if len(stages) == 0 {
		return o.fail(ctx, r, services.Wrap(services.ErrConfiguration, "workflow", "run", "stages not configured", nil))
	}
	if err := o.preflight(ctx, r); err != nil {
		return o.fail(ctx, r, err)
	}

	job := (&stage.Job{
		Key:       key,
		RequestID: requestID,
		Topic:     req.Topic,
		Audience:  req.Level(),
		Interests: req.Interests,
		Layout:    r.layout,
	}).WithReporter(func(ctx context.Context, percent int, message, substep string) {
		o.publish(ctx, r, percent, int(r.step.Load()), message, substep)
	})

	for _, stg := range stages {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, r, err)
		}
		if err := o.executeStage(ctx, r, stg, job); err != nil {
			return o.fail(ctx, r, err)
		}
		r.state = stg.done
	}
	return o.complete(ctx, r)
}

func (o *Orchestrator) preflight(ctx context.Context, r *run) error {
	if err := r.layout.Ensure(); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "create lesson folder", r.layout.Dir(), err)
	}
	if minMiB := o.cfg.Workflow.MinFreeMiB; minMiB > 0 {
		if err := o.spaceCheck(o.cfg.Paths.OutputDir, uint64(minMiB)); err != nil {
			return err
		}
	}
	logging.WithContext(ctx, r.logger).Debug("preflight passed",
		logging.String(logging.FieldEventType, "preflight_passed"),
		logging.String("lesson_dir", r.layout.Dir()),
	)
	return nil
}

func (o *Orchestrator) executeStage(ctx context.Context, r *run, stg pipelineStage, job *stage.Job) error {
	r.stage = stg.name
	r.step.Store(int32(stg.step))
	ctx = services.WithStage(ctx, stg.name)
	logger := logging.WithContext(ctx, r.logger)

	if stg.handler == nil {
		return services.Wrap(services.ErrConfiguration, stg.name, "execute", "stage handler not configured", nil)
	}

	o.publish(ctx, r, stg.percent, stg.step, stg.message, "")
	stageStart := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("step", stg.step),
		logging.Int("percent", stg.percent),
	)

	if err := stg.handler.Prepare(ctx, job); err != nil {
		return err
	}
	if err := stg.handler.Execute(ctx, job); err != nil {
		return err
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_state", string(stg.done)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, r *run) (Outcome, error) {
	final, err := r.layout.Final()
	if err != nil {
		return o.fail(ctx, r, services.Wrap(services.ErrTransient, "workflow", "verify output", r.layout.FinalPath(), err))
	}
	if !final.Exists || final.Size == 0 {
		return o.fail(ctx, r, services.Wrap(services.ErrMissingArtifact, "workflow", "verify output", artifacts.FinalFile+" missing or empty", nil))
	}

	r.state = StateMuxed
	r.videoURL = artifacts.VideoURL(o.cfg.Paths.URLPrefix, r.key)
	logger := logging.WithContext(ctx, r.logger)
	if err := r.publisher.Complete(ctx, completionStep, completionMessage, r.videoURL); err != nil {
		logging.WarnWithContext(logger, "completion status not persisted", "progress_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the progress store"),
			logging.String(logging.FieldImpact, "clients keep polling an in-flight status"),
		)
	}
	outcome := r.outcome()
	logger.Info("lesson completed",
		logging.String(logging.FieldEventType, "lesson_complete"),
		logging.String("video_url", r.videoURL),
		logging.Int64("size_bytes", final.Size),
		logging.Duration("run_duration", outcome.Duration),
	)
	o.notifyCompleted(ctx, r, outcome)
	o.record(r.key, nil)
	return outcome, nil
}

func (o *Orchestrator) publish(ctx context.Context, r *run, percent, step int, message, substep string) {
	published, err := r.publisher.Update(ctx, percent, step, message, substep)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "progress update not persisted", "progress_write_failed",
			logging.Error(err),
			logging.Int("percent", percent),
			logging.String(logging.FieldErrorHint, "check the progress store"),
			logging.String(logging.FieldImpact, "clients see a stale progress record"),
		)
		return
	}
	if !published || !r.sampler.ShouldLog(float64(percent), r.stage) {
		return
	}
	logging.WithContext(ctx, r.logger).Info("lesson progress",
		logging.String(logging.FieldEventType, "stage_progress"),
		logging.Int("percent", percent),
		logging.Int("step", step),
		logging.String("message", message),
		logging.String("substep", substep),
	)
}
