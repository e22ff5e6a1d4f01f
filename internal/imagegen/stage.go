package imagegen

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"siksha/internal/config"
	"siksha/internal/logging"
	"siksha/internal/prompts"
	"siksha/internal/raster"
	"siksha/internal/services"
	"siksha/internal/stage"
)

// Stage renders generated_images/image_NN.png for every prompt.
type Stage struct {
	images config.Images
	width  int
	height int
	client *http.Client
	logger *slog.Logger
}

// NewStage builds the image stage from configuration. client may be nil.
func NewStage(cfg *config.Config, client *http.Client, logger *slog.Logger) *Stage {
	s := &Stage{images: cfg.Images, width: cfg.Video.Width, height: cfg.Video.Height, client: client}
	s.SetLogger(logger)
	return s
}

func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, StageName)
}

// Providers returns the configured chain members in order. The placeholder
// is appended when configuration leaves it out so the chain cannot run dry.
func (s *Stage) Providers() []stage.Provider[Request, image.Image] {
	params := Params{
		Width:          s.images.Width,
		Height:         s.images.Height,
		Steps:          s.images.Steps,
		Guidance:       s.images.Guidance,
		NegativePrompt: s.images.NegativePrompt,
	}
	limit := time.Duration(s.images.TimeoutSeconds) * time.Second
	var out []stage.Provider[Request, image.Image]
	hasPlaceholder := false
	for _, name := range s.images.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "sdwebui":
			out = append(out, &SDWebUI{BaseURL: s.images.SDWebUIURL, Params: params, Limit: limit, Client: s.client})
		case "pollinations":
			out = append(out, &Pollinations{BaseURL: s.images.PollinationsURL, Params: params, Limit: limit, Client: s.client})
		case "placeholder":
			out = append(out, &Placeholder{Width: s.width, Height: s.height})
			hasPlaceholder = true
		}
	}
	if !hasPlaceholder {
		out = append(out, &Placeholder{Width: s.width, Height: s.height})
	}
	return out
}

// Prepare loads prompts from disk when the job did not carry them.
func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	if err := job.Layout.Ensure(); err != nil {
		return services.Wrap(services.ErrTransient, StageName, "prepare", job.Layout.ImagesPath(), err)
	}
	if len(job.Prompts) > 0 {
		return nil
	}
	loaded, err := prompts.ReadFile(job.Layout.PromptsPath())
	if err != nil || len(loaded) == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "load prompts", job.Layout.PromptsPath(), err)
	}
	job.Prompts = loaded
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	chain := stage.NewChain(StageName, s.logger, s.Providers()...)
	job.Report(ctx, 15, "Loading AI image generation model...", "Initializing "+chain.Names()[0])

	total := len(job.Prompts)
	fallbacks := 0
	for i, prompt := range job.Prompts {
		job.Report(ctx, 20+int(float64(i)/float64(total)*40), "Generating educational images...", fmt.Sprintf("Image %d/%d", i+1, total))
		req := Request{Index: i + 1, Prompt: prompt, Topic: job.Topic}
		result, err := chain.Run(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.WarnWithContext(logger, "image skipped", "image_skipped",
				logging.Int("scene", req.Index),
				logging.Error(err),
				logging.String(logging.FieldImpact, "lesson will have one fewer scene"),
			)
			continue
		}
		if result.Fallback {
			fallbacks++
		}
		if err := raster.WritePNG(job.Layout.ImagePath(req.Index), s.fit(result.Value)); err != nil {
			return services.Wrap(services.ErrTransient, StageName, "write image", job.Layout.ImagePath(req.Index), err)
		}
		logger.Debug("image written",
			logging.Int("scene", req.Index),
			logging.String(logging.FieldProvider, result.Provider),
		)
	}

	written, err := job.Layout.Images()
	if err != nil || len(written) == 0 {
		return services.Wrap(services.ErrMissingArtifact, StageName, "collect images", "no images were produced", err)
	}
	job.Report(ctx, 60, "All images generated successfully!", "Completed")
	logger.Info("images ready",
		logging.String(logging.FieldEventType, "stage_output"),
		logging.Int("images", len(written)),
		logging.Int("fallbacks", fallbacks),
	)
	return nil
}

// fit letterboxes anything that is not already a full-size frame.
func (s *Stage) fit(img image.Image) image.Image {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds() == image.Rect(0, 0, s.width, s.height) {
		return rgba
	}
	return raster.Letterbox(img, s.width, s.height)
}

func (s *Stage) HealthCheck(context.Context) stage.Health {
	providers := s.Providers()
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	if names[0] == "placeholder" {
		return stage.Degraded(StageName, "only placeholder cards are configured", names...)
	}
	return stage.Healthy(StageName, names...)
}
