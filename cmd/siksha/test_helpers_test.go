package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"siksha/internal/config"
	"siksha/internal/daemon"
	"siksha/internal/notifications"
	"siksha/internal/progress"
	"siksha/internal/stage"
	"siksha/internal/testsupport"
	"siksha/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *stage.Job) error { return nil }
func (noopStage) Execute(context.Context, *stage.Job) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health  { return stage.Healthy("noop", "fake") }

// holdStage blocks until the run is cancelled or release is closed.
type holdStage struct {
	release chan struct{}
}

func (holdStage) Prepare(context.Context, *stage.Job) error { return nil }
func (h holdStage) Execute(ctx context.Context, _ *stage.Job) error {
	select {
	case <-h.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (holdStage) HealthCheck(context.Context) stage.Health { return stage.Healthy("hold", "fake") }

type muxStage struct{}

func (muxStage) Prepare(context.Context, *stage.Job) error { return nil }
func (muxStage) Execute(_ context.Context, job *stage.Job) error {
	return os.WriteFile(job.Layout.FinalPath(), []byte("mp4"), 0o644)
}
func (muxStage) HealthCheck(context.Context) stage.Health { return stage.Healthy("mux", "fake") }

type silentNotifier struct{}

func (silentNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      progress.Store
	daemon     *daemon.Daemon
	server     *httptest.Server
	configPath string
	release    chan struct{}
}

// setupCLITestEnv serves a daemon whose image stage holds until release is
// closed, so tests can observe an in-flight run.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(homeDir, ".config", "siksha", "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := progress.NewMemoryStore()
	release := make(chan struct{})
	orch := workflow.NewOrchestrator(cfg, store, nil,
		workflow.WithNotifier(silentNotifier{}),
		workflow.WithStages(workflow.StageSet{
			Prompts: noopStage{},
			Images:  holdStage{release: release},
			Script:  noopStage{},
			Audio:   noopStage{},
			Video:   noopStage{},
			Mux:     muxStage{},
		}),
	)
	d, err := daemon.New(cfg, store, orch, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	srv := httptest.NewServer(d.Handler())

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		configPath: configPath,
		release:    release,
	}
	t.Cleanup(func() {
		env.releaseRuns()
		srv.Close()
		_ = d.Close()
	})
	return env
}

func (e *cliTestEnv) releaseRuns() {
	select {
	case <-e.release:
	default:
		close(e.release)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.server.URL, e.configPath)
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
output_dir = %q
state_dir = %q
log_dir = %q
api_bind = %q

[llm]
enabled = false

[ollama]
enabled = false

[images]
providers = ["placeholder"]

[workflow]
min_free_mib = 0
`, cfg.Paths.OutputDir, cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.APIBind)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
