package prompts

import (
	"context"
	"log/slog"

	"siksha/internal/logging"
	"siksha/internal/services"
	"siksha/internal/stage"
	"siksha/internal/textgen"
)

// Stage writes image_prompts.txt and hands the prompts to the image stage.
type Stage struct {
	gens   []textgen.Generator
	count  int
	logger *slog.Logger
}

// NewStage builds the prompt stage. count is the number of scenes.
func NewStage(gens []textgen.Generator, count int, logger *slog.Logger) *Stage {
	s := &Stage{gens: gens, count: count}
	s.SetLogger(logger)
	return s
}

func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, StageName)
}

func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	return job.Layout.Ensure()
}

func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	in := Input{Topic: job.Topic, Audience: job.Audience, Interests: job.Interests, Count: s.count}
	result, err := NewChain(s.gens, s.logger).Run(ctx, in)
	if err != nil {
		return err
	}
	if err := WriteFile(job.Layout.PromptsPath(), result.Value); err != nil {
		return services.Wrap(services.ErrTransient, StageName, "write prompts", job.Layout.PromptsPath(), err)
	}
	job.Prompts = result.Value
	winner, failed := stage.Provenance(result)
	logging.WithContext(ctx, s.logger).Info("image prompts ready",
		logging.String(logging.FieldEventType, "stage_output"),
		logging.String(logging.FieldProvider, winner),
		logging.Any("failed_providers", failed),
		logging.Int("prompts", len(result.Value)),
	)
	return nil
}

// HealthCheck is always ready: the template provider needs nothing.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	names := NewChain(s.gens, nil).Names()
	if len(s.gens) == 0 {
		return stage.Degraded(StageName, "no text generator enabled; using templates", names...)
	}
	return stage.Healthy(StageName, names...)
}
