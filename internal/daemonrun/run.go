package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"siksha/internal/config"
	"siksha/internal/daemon"
	"siksha/internal/logging"
	"siksha/internal/progress"
	"siksha/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Runtime bundles the long-lived pieces shared by the daemon and one-shot
// generation.
type Runtime struct {
	Logger       *slog.Logger
	Store        progress.Store
	Orchestrator *workflow.Orchestrator
}

// Close releases the progress store.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// NewLogger builds the process logger, applying an optional level override.
func NewLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	local := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		local.Logging.Level = level
	}
	if opts.Development {
		local.Logging.Format = "console"
	}
	return logging.NewFromConfig(&local)
}

// Build opens the progress store and wires the production stages.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	store, err := progress.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open progress store: %w", err)
	}
	client := &http.Client{Timeout: time.Duration(cfg.Images.TimeoutSeconds) * time.Second}
	orch := workflow.NewOrchestrator(cfg, store, logger,
		workflow.WithStages(workflow.DefaultStages(cfg, client, logger)),
	)
	return &Runtime{Logger: logger, Store: store, Orchestrator: orch}, nil
}

// Run starts the siksha daemon and serves the HTTP API until SIGINT or
// SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := NewLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	rt, err := Build(cfg, logger)
	if err != nil {
		logger.Error("runtime setup failed", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, rt.Store, rt.Orchestrator, logger)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "stop the other sikshad instance or remove a stale lock in paths.state_dir"),
		)
		return err
	}

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if err := d.Serve(signalCtx); err != nil {
		return err
	}
	logger.Info("siksha daemon shutting down")
	return nil
}

// PIDPath is where the running daemon records its process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "sikshad.pid")
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(PIDPath(cfg))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_enabled", cfg.LLM.Enabled),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("ollama_enabled", cfg.Ollama.Enabled),
		logging.String("image_providers", strings.Join(cfg.Images.Providers, ",")),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.FFmpeg.Binary)),
		logging.String("ffmpeg_binary", cfg.FFmpeg.Binary),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.FFmpeg.ProbeBinary)),
		logging.Bool("edge_tts_available", binaryAvailable(cfg.Speech.EdgeTTSBinary)),
		logging.Bool("espeak_available", binaryAvailable(cfg.Speech.EspeakBinary)),
		logging.String("progress_backend", cfg.Progress.Backend),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
