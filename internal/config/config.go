package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, URL, and bind address configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	URLPrefix string `toml:"url_prefix"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Video contains the geometry and caption layout of the assembled lesson.
type Video struct {
	Width          int `toml:"width"`
	Height         int `toml:"height"`
	FPS            int `toml:"fps"`
	SceneCount     int `toml:"scene_count"`
	CaptionWrap    int `toml:"caption_wrap"`
	CaptionLineGap int `toml:"caption_line_height"`
	CaptionPadding int `toml:"caption_padding"`
}

// LLM contains the OpenAI-compatible chat completion endpoint used for
// prompt and narration text.
type LLM struct {
	Enabled           bool   `toml:"enabled"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Ollama contains the local CLI text generator used when the HTTP endpoint
// is unavailable.
type Ollama struct {
	Enabled        bool   `toml:"enabled"`
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Images contains the image generator chain configuration.
type Images struct {
	Providers       []string `toml:"providers"`
	SDWebUIURL      string   `toml:"sdwebui_url"`
	PollinationsURL string   `toml:"pollinations_url"`
	Steps           int      `toml:"steps"`
	Guidance        float64  `toml:"guidance"`
	Width           int      `toml:"width"`
	Height          int      `toml:"height"`
	NegativePrompt  string   `toml:"negative_prompt"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
}

// Speech contains the voiceover chain configuration.
type Speech struct {
	Voices         []string `toml:"voices"`
	Rate           string   `toml:"rate"`
	Pitch          string   `toml:"pitch"`
	EdgeTTSBinary  string   `toml:"edge_tts_binary"`
	EspeakBinary   string   `toml:"espeak_binary"`
	EspeakRate     int      `toml:"espeak_rate"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	WordsPerMinute int      `toml:"words_per_minute"`
	SampleRate     int      `toml:"sample_rate"`
}

// FFmpeg contains encoder and probe settings.
type FFmpeg struct {
	Binary             string `toml:"binary"`
	ProbeBinary        string `toml:"probe_binary"`
	Preset             string `toml:"preset"`
	CRF                int    `toml:"crf"`
	AudioBitrate       string `toml:"audio_bitrate"`
	MuxTimeoutSeconds  int    `toml:"mux_timeout_seconds"`
	ProbeTimeoutSecond int    `toml:"probe_timeout_seconds"`
}

// Progress selects the backend that holds per-run status records.
type Progress struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Workflow contains run scheduling and guard settings.
type Workflow struct {
	MaxConcurrentRuns   int `toml:"max_concurrent_runs"`
	MinFreeMiB          int `toml:"min_free_mib"`
	RecentWindowSeconds int `toml:"recent_window_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for siksha.
//
// Configuration sections by subsystem:
//   - Paths: lesson output root, state, logs, URL prefix and API bind address
//   - Video: frame geometry and caption layout
//   - LLM / Ollama: text generation for prompts and narration
//   - Images: image generator chain
//   - Speech: voiceover chain
//   - FFmpeg: encoder, muxer and probe
//   - Progress: status store backend
//   - Workflow: concurrency and preflight guards
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level and per-stage overrides
type Config struct {
	Paths         Paths         `toml:"paths"`
	Video         Video         `toml:"video"`
	LLM           LLM           `toml:"llm"`
	Ollama        Ollama        `toml:"ollama"`
	Images        Images        `toml:"images"`
	Speech        Speech        `toml:"speech"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Progress      Progress      `toml:"progress"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("siksha.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon and one-shot runs write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file guarding the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "sikshad.lock")
}

// LLMTimeout returns the per-request text generation timeout.
func (c *Config) LLMTimeout() time.Duration {
	return seconds(c.LLM.TimeoutSeconds)
}

// RecentWindow is the age under which a finished video counts as fresh.
func (c *Config) RecentWindow() time.Duration {
	return seconds(c.Workflow.RecentWindowSeconds)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
