package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownImageProviders = map[string]struct{}{
	"sdwebui":      {},
	"pollinations": {},
	"placeholder":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if err := ensurePositiveMap(map[string]int{
		"video.width":               c.Video.Width,
		"video.height":              c.Video.Height,
		"video.fps":                 c.Video.FPS,
		"video.scene_count":         c.Video.SceneCount,
		"video.caption_wrap":        c.Video.CaptionWrap,
		"video.caption_line_height": c.Video.CaptionLineGap,
	}); err != nil {
		return err
	}
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		return errors.New("video.width and video.height must be even for yuv420p output")
	}
	if c.Video.CaptionPadding < 0 {
		return errors.New("video.caption_padding must be >= 0")
	}
	return nil
}

func (c *Config) validateImages() error {
	for _, name := range c.Images.Providers {
		if _, ok := knownImageProviders[name]; !ok {
			return fmt.Errorf("images.providers: unknown provider %q", name)
		}
	}
	for _, name := range c.Images.Providers {
		if name == "sdwebui" && c.Images.SDWebUIURL == "" {
			return errors.New("images.sdwebui_url must be set when sdwebui is listed in images.providers")
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"images.steps":  c.Images.Steps,
		"images.width":  c.Images.Width,
		"images.height": c.Images.Height,
	}); err != nil {
		return err
	}
	if c.Images.Guidance <= 0 {
		return errors.New("images.guidance must be positive")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"ollama.timeout_seconds":        c.Ollama.TimeoutSeconds,
		"images.timeout_seconds":        c.Images.TimeoutSeconds,
		"speech.timeout_seconds":        c.Speech.TimeoutSeconds,
		"speech.words_per_minute":       c.Speech.WordsPerMinute,
		"speech.sample_rate":            c.Speech.SampleRate,
		"ffmpeg.mux_timeout_seconds":    c.FFmpeg.MuxTimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateProgress() error {
	switch c.Progress.Backend {
	case "memory":
		return nil
	case "sqlite":
		if strings.TrimSpace(c.Progress.Path) == "" {
			return errors.New("progress.path must be set when progress.backend is sqlite")
		}
		return nil
	default:
		return fmt.Errorf("progress.backend: unsupported value %q (memory or sqlite)", c.Progress.Backend)
	}
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrentRuns < 0 {
		return errors.New("workflow.max_concurrent_runs must be >= 0 (0 disables the limit)")
	}
	if c.Workflow.MinFreeMiB < 0 {
		return errors.New("workflow.min_free_mib must be >= 0")
	}
	if c.Workflow.RecentWindowSeconds <= 0 {
		return errors.New("workflow.recent_window_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	for stage, level := range c.Logging.StageOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.stage_overrides.%s: unsupported level %q", stage, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
