package speech

import (
	"context"
	"log/slog"
	"os"
	"time"

	"siksha/internal/config"
	"siksha/internal/logging"
	"siksha/internal/narration"
	"siksha/internal/services"
	"siksha/internal/stage"
)

// Stage writes output.wav from the narration script.
type Stage struct {
	speech config.Speech
	logger *slog.Logger
}

// NewStage builds the audio stage.
func NewStage(cfg *config.Config, logger *slog.Logger) *Stage {
	s := &Stage{speech: cfg.Speech}
	s.SetLogger(logger)
	return s
}

func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, StageName)
}

// Providers lists one edge-tts provider per configured voice, then
// espeak-ng, then silence.
func (s *Stage) Providers() []stage.Provider[Input, Output] {
	limit := time.Duration(s.speech.TimeoutSeconds) * time.Second
	out := make([]stage.Provider[Input, Output], 0, len(s.speech.Voices)+2)
	for _, voice := range s.speech.Voices {
		out = append(out, &EdgeTTS{Binary: s.speech.EdgeTTSBinary, Voice: voice, Rate: s.speech.Rate, Pitch: s.speech.Pitch, Limit: limit})
	}
	out = append(out,
		&Espeak{Binary: s.speech.EspeakBinary, Rate: s.speech.EspeakRate, Limit: limit},
		&Silent{SampleRate: s.speech.SampleRate, WordsPerMinute: s.speech.WordsPerMinute},
	)
	return out
}

// Prepare recovers the script from script.txt when the job does not carry it.
func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	if len(job.Script) > 0 {
		return nil
	}
	data, err := os.ReadFile(job.Layout.ScriptPath())
	if err != nil || len(data) == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "load script", job.Layout.ScriptPath(), err)
	}
	job.Script = narration.Split(string(data))
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	chain := stage.NewChain(StageName, s.logger, s.Providers()...)
	result, err := chain.Run(ctx, Input{Script: narration.Join(job.Script), Out: job.Layout.AudioPath()})
	if err != nil {
		return err
	}
	winner, failed := stage.Provenance(result)
	logging.WithContext(ctx, s.logger).Info("voiceover ready",
		logging.String(logging.FieldEventType, "stage_output"),
		logging.String(logging.FieldProvider, winner),
		logging.Any("failed_providers", failed),
		logging.Int("bytes", int(result.Value.Bytes)),
	)
	return nil
}

func (s *Stage) HealthCheck(context.Context) stage.Health {
	names := make([]string, 0, len(s.speech.Voices)+2)
	for _, p := range s.Providers() {
		names = append(names, p.Name())
	}
	return stage.Healthy(StageName, names...)
}
