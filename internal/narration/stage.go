package narration

import (
	"context"
	"log/slog"

	"siksha/internal/artifacts"
	"siksha/internal/fileutil"
	"siksha/internal/logging"
	"siksha/internal/services"
	"siksha/internal/stage"
	"siksha/internal/textgen"
)

// Stage writes script.txt with one sentence per generated image.
type Stage struct {
	gens   []textgen.Generator
	logger *slog.Logger
}

// NewStage builds the script stage.
func NewStage(gens []textgen.Generator, logger *slog.Logger) *Stage {
	s := &Stage{gens: gens}
	s.SetLogger(logger)
	return s
}

func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, StageName)
}

// Prepare fails when the image stage left nothing to narrate.
func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	images, err := job.Layout.Images()
	if err != nil {
		return services.Wrap(services.ErrMissingArtifact, StageName, "list images", job.Layout.ImagesPath(), err)
	}
	if len(images) == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "list images", "no images to narrate in "+artifacts.ImagesDir, nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	images, err := job.Layout.Images()
	if err != nil {
		return services.Wrap(services.ErrMissingArtifact, StageName, "list images", job.Layout.ImagesPath(), err)
	}
	in := Input{Topic: job.Topic, Audience: job.Audience, Interests: job.Interests, Scenes: len(images)}
	result, err := NewChain(s.gens, s.logger).Run(ctx, in)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(job.Layout.ScriptPath(), []byte(Format(result.Value)), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, StageName, "write script", job.Layout.ScriptPath(), err)
	}
	job.Script = result.Value
	winner, failed := stage.Provenance(result)
	logging.WithContext(ctx, s.logger).Info("narration script ready",
		logging.String(logging.FieldEventType, "stage_output"),
		logging.String(logging.FieldProvider, winner),
		logging.Any("failed_providers", failed),
		logging.Int("sentences", len(result.Value)),
	)
	return nil
}

func (s *Stage) HealthCheck(context.Context) stage.Health {
	names := NewChain(s.gens, nil).Names()
	if len(s.gens) == 0 {
		return stage.Degraded(StageName, "no text generator enabled; using templates", names...)
	}
	return stage.Healthy(StageName, names...)
}
