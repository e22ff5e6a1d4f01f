// Package muxing joins the silent lesson video with its voiceover into
// final_output_video.mp4. When ffmpeg cannot mux, the video is published
// without sound rather than failing the run.
package muxing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"siksha/internal/artifacts"
	"siksha/internal/config"
	"siksha/internal/fileutil"
	"siksha/internal/logging"
	"siksha/internal/services"
	"siksha/internal/stage"
)

// StageName labels logs, errors and progress for this stage.
const StageName = "mux"

// Input names the three files involved in a mux.
type Input struct {
	Video  string
	Audio  string
	Output string
}

// FFmpeg re-encodes video and audio into one MP4 trimmed to the shorter
// stream.
type FFmpeg struct {
	Binary       string
	Preset       string
	CRF          int
	AudioBitrate string
	Limit        time.Duration
}

func (p *FFmpeg) Name() string { return "ffmpeg" }

func (p *FFmpeg) Timeout() time.Duration { return p.Limit }

// Args returns the ffmpeg arguments muxing in into output.
func (p *FFmpeg) Args(in Input, output string) []string {
	return []string{
		"-y",
		"-i", in.Video,
		"-i", in.Audio,
		"-c:v", "libx264",
		"-preset", p.Preset,
		"-crf", fmt.Sprint(p.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", p.AudioBitrate,
		"-ar", "44100",
		"-ac", "2",
		"-shortest",
		output,
	}
}

func (p *FFmpeg) Attempt(ctx context.Context, in Input) (string, error) {
	if !fileutil.NonEmpty(in.Audio) {
		return "", services.Wrap(services.ErrMissingArtifact, StageName, "ffmpeg mux", "no audio track", nil)
	}
	ext := filepath.Ext(in.Output)
	partial := strings.TrimSuffix(in.Output, ext) + ".partial" + ext
	defer os.Remove(partial)

	if _, err := (services.Command{Stage: StageName, Binary: p.Binary, Args: p.Args(in, partial)}).Run(ctx); err != nil {
		return "", err
	}
	if !fileutil.NonEmpty(partial) {
		return "", services.Wrap(services.ErrMalformedOutput, StageName, "ffmpeg mux", "ffmpeg wrote no output", nil)
	}
	if err := os.Rename(partial, in.Output); err != nil {
		return "", services.Wrap(services.ErrTransient, StageName, "ffmpeg mux", "move output into place", err)
	}
	return in.Output, nil
}

// Copy publishes the silent video unchanged.
type Copy struct{}

func (Copy) Name() string { return "copy" }

func (Copy) Attempt(_ context.Context, in Input) (string, error) {
	if err := fileutil.CopyFile(in.Video, in.Output); err != nil {
		return "", services.Wrap(services.ErrTransient, StageName, "copy video", in.Output, err)
	}
	return in.Output, nil
}

// Stage writes final_output_video.mp4.
type Stage struct {
	ffmpeg config.FFmpeg
	logger *slog.Logger
}

// NewStage builds the mux stage.
func NewStage(cfg *config.Config, logger *slog.Logger) *Stage {
	s := &Stage{ffmpeg: cfg.FFmpeg}
	s.SetLogger(logger)
	return s
}

func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, StageName)
}

// Providers returns ffmpeg then copy. Without an audio track only copy runs.
func (s *Stage) Providers(hasAudio bool) []stage.Provider[Input, string] {
	copyOnly := []stage.Provider[Input, string]{Copy{}}
	if !hasAudio {
		return copyOnly
	}
	return append([]stage.Provider[Input, string]{&FFmpeg{
		Binary:       s.ffmpeg.Binary,
		Preset:       s.ffmpeg.Preset,
		CRF:          s.ffmpeg.CRF,
		AudioBitrate: s.ffmpeg.AudioBitrate,
		Limit:        time.Duration(s.ffmpeg.MuxTimeoutSeconds) * time.Second,
	}}, copyOnly...)
}

func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	return job.Layout.Require(StageName, artifacts.VideoFile)
}

func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	in := Input{Video: job.Layout.VideoPath(), Audio: job.Layout.AudioPath(), Output: job.Layout.FinalPath()}
	hasAudio := fileutil.NonEmpty(in.Audio)
	if !hasAudio {
		logging.WarnWithContext(logger, "voiceover missing; publishing silent video", "mux_no_audio",
			logging.String("audio", in.Audio),
			logging.String(logging.FieldImpact, "lesson video has no sound"),
			logging.String(logging.FieldErrorHint, "check the audio stage logs"),
		)
	}
	result, err := stage.NewChain(StageName, s.logger, s.Providers(hasAudio)...).Run(ctx, in)
	if err != nil {
		return err
	}
	info, err := os.Stat(result.Value)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "verify output", result.Value, err)
	}
	logger.Info("final video ready",
		logging.String(logging.FieldEventType, "stage_output"),
		logging.String(logging.FieldProvider, result.Provider),
		logging.Bool("with_audio", result.Provider == "ffmpeg"),
		logging.Int("bytes", int(info.Size())),
	)
	return nil
}

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if strings.TrimSpace(s.ffmpeg.Binary) == "" {
		return stage.Degraded(StageName, "ffmpeg not configured; videos publish without audio", "copy")
	}
	return stage.Healthy(StageName, "ffmpeg", "copy")
}
