package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeImages()
	c.normalizeSpeech()
	c.normalizeFFmpeg()
	if err := c.normalizeProgress(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.URLPrefix = "/" + strings.Trim(strings.TrimSpace(c.Paths.URLPrefix), "/")
	if c.Paths.URLPrefix == "/" {
		c.Paths.URLPrefix = defaultURLPrefix
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SIKSHA_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("SIKSHA_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}

	c.Ollama.Binary = strings.TrimSpace(c.Ollama.Binary)
	if c.Ollama.Binary == "" {
		c.Ollama.Binary = defaultOllamaBinary
	}
	c.Ollama.Model = strings.TrimSpace(c.Ollama.Model)
	if c.Ollama.Model == "" {
		c.Ollama.Model = c.LLM.Model
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		c.Ollama.TimeoutSeconds = c.LLM.TimeoutSeconds
	}
}

func (c *Config) normalizeImages() {
	c.Images.Providers = normalizeList(c.Images.Providers, defaultImageProviders, strings.ToLower)
	c.Images.SDWebUIURL = strings.TrimRight(strings.TrimSpace(c.Images.SDWebUIURL), "/")
	c.Images.PollinationsURL = strings.TrimRight(strings.TrimSpace(c.Images.PollinationsURL), "/")
	if c.Images.PollinationsURL == "" {
		c.Images.PollinationsURL = defaultPollinationsURL
	}
	if strings.TrimSpace(c.Images.NegativePrompt) == "" {
		c.Images.NegativePrompt = defaultNegativePrompt
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.Voices = normalizeList(c.Speech.Voices, defaultVoices, nil)
	c.Speech.EdgeTTSBinary = strings.TrimSpace(c.Speech.EdgeTTSBinary)
	if c.Speech.EdgeTTSBinary == "" {
		c.Speech.EdgeTTSBinary = defaultEdgeTTSBinary
	}
	c.Speech.EspeakBinary = strings.TrimSpace(c.Speech.EspeakBinary)
	if c.Speech.EspeakBinary == "" {
		c.Speech.EspeakBinary = defaultEspeakBinary
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.ProbeBinary = strings.TrimSpace(c.FFmpeg.ProbeBinary)
	if c.FFmpeg.ProbeBinary == "" {
		c.FFmpeg.ProbeBinary = defaultFFprobeBinary
	}
	c.FFmpeg.Preset = strings.TrimSpace(c.FFmpeg.Preset)
	if c.FFmpeg.Preset == "" {
		c.FFmpeg.Preset = defaultFFmpegPreset
	}
	if c.FFmpeg.ProbeTimeoutSecond <= 0 {
		c.FFmpeg.ProbeTimeoutSecond = defaultProbeTimeoutSeconds
	}
}

func (c *Config) normalizeProgress() error {
	c.Progress.Backend = strings.ToLower(strings.TrimSpace(c.Progress.Backend))
	if c.Progress.Backend == "" {
		c.Progress.Backend = defaultProgressBackend
	}
	if strings.TrimSpace(c.Progress.Path) == "" {
		c.Progress.Path = defaultProgressPath
	}
	var err error
	if c.Progress.Path, err = expandPath(c.Progress.Path); err != nil {
		return fmt.Errorf("progress.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			stage = strings.ToLower(strings.TrimSpace(stage))
			if stage == "" {
				continue
			}
			overrides[stage] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.StageOverrides = overrides
	}
}

func normalizeList(values, fallback []string, transform func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if transform != nil {
			value = transform(value)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
