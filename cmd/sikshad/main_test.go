package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"siksha/internal/config"
	"siksha/internal/daemonrun"
)

type capturedRun struct {
	cfg  *config.Config
	opts daemonrun.Options
}

func execute(t *testing.T, args ...string) (capturedRun, error) {
	t.Helper()
	var got capturedRun
	cmd := newRootCommand(func(_ context.Context, cfg *config.Config, opts daemonrun.Options) error {
		got = capturedRun{cfg: cfg, opts: opts}
		return nil
	})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return got, err
}

func TestRootCommandAppliesOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\napi_bind = \"127.0.0.1:9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := execute(t, "--config", path, "--log-level", "debug")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.cfg.Paths.APIBind != "127.0.0.1:9000" || got.opts.LogLevel != "debug" {
		t.Fatalf("bind=%q level=%q", got.cfg.Paths.APIBind, got.opts.LogLevel)
	}

	got, err = execute(t, "-c", path, "--bind", "0.0.0.0:8080")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.cfg.Paths.APIBind != "0.0.0.0:8080" {
		t.Fatalf("bind override ignored: %q", got.cfg.Paths.APIBind)
	}
}

func TestRootCommandRejectsUnknownFlagsAndArgs(t *testing.T) {
	for _, args := range [][]string{{"--nope"}, {"extra"}} {
		if _, err := execute(t, args...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestRootCommandReportsConfigErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[paths\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := execute(t, "--config", path); err == nil {
		t.Fatal("expected config load error")
	}
}
