package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"siksha/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network generators are disabled so nothing leaves the machine unless a
// test points them at an httptest server.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "generated_videos")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Progress.Path = filepath.Join(base, "state", "progress.db")
	cfgVal.LLM.Enabled = false
	cfgVal.Ollama.Enabled = false
	cfgVal.Images.Providers = []string{"placeholder"}
	cfgVal.Speech.Voices = nil
	cfgVal.Workflow.MinFreeMiB = 0
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSmallVideo shrinks frame geometry so assembly tests stay fast.
func WithSmallVideo(width, height, fps int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Video.Width = width
		b.cfg.Video.Height = height
		b.cfg.Video.FPS = fps
		b.cfg.Images.Width = width
		b.cfg.Images.Height = height
	}
}

// WithSQLiteProgress switches the progress store to the sqlite backend.
func WithSQLiteProgress() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Progress.Backend = "sqlite"
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default siksha external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "edge-tts", "espeak-ng"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
