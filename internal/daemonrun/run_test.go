package daemonrun

import (
	"context"
	"os"
	"testing"

	"siksha/internal/testsupport"
	"siksha/internal/workflow"
)

func TestPIDFileRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := writePIDFile(PIDPath(cfg)); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := ReadPID(cfg)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestReadPIDRejectsGarbage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, PIDPath(cfg), 4)
	if _, err := ReadPID(cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBuildWiresAllStages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSQLiteProgress())
	rt, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	summary := rt.Orchestrator.Status(context.Background())
	if len(summary.StageHealth) != 6 {
		t.Fatalf("stage health = %+v", summary.StageHealth)
	}
	if _, err := os.Stat(cfg.Paths.OutputDir); err != nil {
		t.Fatalf("output dir not created: %v", err)
	}

	req := workflow.Request{Topic: "Tides"}
	if _, err := rt.Orchestrator.Reset(req); err != nil {
		t.Fatalf("Reset: %v", err)
	}
}

func TestNewLoggerAppliesOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	logger, err := NewLogger(cfg, Options{LogLevel: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Enabled(context.Background(), -4) {
		t.Fatal("expected debug level enabled")
	}
	if cfg.Logging.Level == "debug" {
		t.Fatal("override leaked into shared config")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
