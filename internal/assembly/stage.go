package assembly

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"siksha/internal/captions"
	"siksha/internal/config"
	"siksha/internal/logging"
	"siksha/internal/narration"
	"siksha/internal/raster"
	"siksha/internal/services"
	"siksha/internal/stage"
)

// StageName labels logs, errors and progress for this stage.
const StageName = "video"

// MaxImages caps how many images go into one lesson video.
const MaxImages = 15

const progressMessage = "Building video with transitions and captions..."

// FramesPerImage is the number of frames each image is held for: an equal
// share of duration, never less than one second.
func FramesPerImage(duration float64, images, fps int) int {
	if images <= 0 {
		return 0
	}
	return max(int(duration/float64(images)*float64(fps)), fps)
}

// Stage writes captions.srt and output_video.mp4.
type Stage struct {
	video          config.Video
	ffmpeg         config.FFmpeg
	wordsPerMinute int
	encoder        Encoder
	logger         *slog.Logger
}

// NewStage builds the assembly stage. A nil encoder uses ffmpeg.
func NewStage(cfg *config.Config, encoder Encoder, logger *slog.Logger) *Stage {
	if encoder == nil {
		encoder = FFmpegEncoder{Binary: cfg.FFmpeg.Binary, Preset: cfg.FFmpeg.Preset}
	}
	s := &Stage{
		video:          cfg.Video,
		ffmpeg:         cfg.FFmpeg,
		wordsPerMinute: cfg.Speech.WordsPerMinute,
		encoder:        encoder,
	}
	s.SetLogger(logger)
	return s
}

func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, StageName)
}

// Prepare checks for images and recovers narration lines from script.txt
// when the job does not carry them.
func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	images, err := job.Layout.Images()
	if err != nil {
		return services.Wrap(services.ErrMissingArtifact, StageName, "list images", job.Layout.ImagesPath(), err)
	}
	if len(images) == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "list images", "no images in "+job.Layout.ImagesPath(), nil)
	}
	if len(job.Script) > 0 {
		return nil
	}
	data, err := os.ReadFile(job.Layout.ScriptPath())
	if err != nil || len(data) == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "load script", job.Layout.ScriptPath(), err)
	}
	job.Script = narration.Split(string(data))
	if len(job.Script) == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "load script", "no narration lines in "+job.Layout.ScriptPath(), nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	script := strings.Join(job.Script, " ")

	probe, err := newDurationChain(s).Run(ctx, durationInput{Audio: job.Layout.AudioPath(), Script: script})
	if err != nil {
		return err
	}
	duration := probe.Value

	units := captions.Estimate(job.Script, duration)
	if err := writeCaptions(job.Layout.CaptionsPath(), units); err != nil {
		return err
	}

	paths, err := job.Layout.Images()
	if err != nil {
		return services.Wrap(services.ErrMissingArtifact, StageName, "list images", job.Layout.ImagesPath(), err)
	}
	if len(paths) > MaxImages {
		paths = paths[:MaxImages]
	}
	bases := make([]*image.RGBA, 0, len(paths))
	for _, path := range paths {
		img, err := s.loadImage(path)
		if err != nil {
			logging.WarnWithContext(logger, "skipping unreadable image", "image_skipped",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "lesson has one image fewer"),
			)
			continue
		}
		bases = append(bases, img)
	}
	if len(bases) == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "load images", "no readable images", nil)
	}

	frames := FramesPerImage(duration, len(bases), s.video.FPS)
	logger.Info("assembling video",
		logging.String(logging.FieldEventType, "stage_plan"),
		logging.String("duration_source", probe.Provider),
		logging.Float64("duration_seconds", duration),
		logging.Int("images", len(bases)),
		logging.Int("frames_per_image", frames),
		logging.Int("captions", len(units)),
		logging.Float64("caption_span_seconds", captions.Span(units)),
	)

	overlay, err := NewOverlay(s.video.CaptionWrap, s.video.CaptionLineGap, s.video.CaptionPadding)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, StageName, "load caption font", "", err)
	}
	sink, err := s.encoder.Open(ctx, Spec{Width: s.video.Width, Height: s.video.Height, FPS: s.video.FPS, Output: job.Layout.VideoPath()})
	if err != nil {
		return err
	}
	if err := render(ctx, job, sink, overlay, bases, units, frames, s.video.FPS); err != nil {
		if closeErr := sink.Close(); closeErr != nil && ctx.Err() == nil {
			return closeErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return sink.Close()
}

// render streams every frame. The composited frame is reused while the
// caption stays the same.
func render(ctx context.Context, job *stage.Job, sink FrameSink, overlay *Overlay, bases []*image.RGBA, units []captions.Unit, frames, fps int) error {
	step := 1 / float64(fps)
	t := 0.0
	for i, base := range bases {
		if err := ctx.Err(); err != nil {
			return err
		}
		job.Report(ctx, 85, progressMessage, fmt.Sprintf("Image %d/%d", i+1, len(bases)))

		var frame *image.RGBA
		last := ""
		for f := 0; f < frames; f++ {
			caption := captions.Active(units, t)
			if frame == nil || caption != last {
				frame = overlay.Compose(base, caption)
				last = caption
			}
			if err := sink.WriteFrame(frame); err != nil {
				return services.Wrap(services.ErrExternalTool, StageName, "write frame", fmt.Sprintf("image %d frame %d", i+1, f), err)
			}
			t += step
		}
	}
	return nil
}

func (s *Stage) loadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Dx() == s.video.Width && rgba.Bounds().Dy() == s.video.Height && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}
	return raster.Letterbox(img, s.video.Width, s.video.Height), nil
}

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if _, ok := s.encoder.(FFmpegEncoder); ok && s.ffmpeg.Binary == "" {
		return stage.Unhealthy(StageName, "ffmpeg binary not configured")
	}
	return stage.Healthy(StageName, "ffprobe", "wav-header", "word-estimate")
}

// writeCaptions writes the SRT track and checks that it parses back cue for
// cue.
func writeCaptions(path string, units []captions.Unit) error {
	if err := captions.WriteFile(path, units); err != nil {
		return services.Wrap(services.ErrTransient, StageName, "write captions", path, err)
	}
	cues, err := captions.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrMalformedOutput, StageName, "verify captions", path, err)
	}
	if issues := captions.Validate(cues); len(issues) > 0 {
		return services.Wrap(services.ErrMalformedOutput, StageName, "verify captions", strings.Join(issues, "; "), nil)
	}
	if len(cues) != len(units) {
		return services.Wrap(services.ErrMalformedOutput, StageName, "verify captions",
			fmt.Sprintf("%d cues written, %d read back", len(units), len(cues)), nil)
	}
	return nil
}
