package services_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"siksha/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "audio", "edge-tts", "synthesis failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"audio", "edge-tts", "synthesis failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.ErrorKind
	}{
		{"nil", nil, ""},
		{"tool missing", services.Wrap(services.ErrToolMissing, "audio", "espeak-ng", "not on PATH", nil), services.KindExternalTool},
		{"exec not found", fmt.Errorf("start: %w", exec.ErrNotFound), services.KindExternalTool},
		{"deadline", fmt.Errorf("llm: %w", context.DeadlineExceeded), services.KindTimeout},
		{"timeout marker", services.Wrap(services.ErrTimeout, "mux", "ffmpeg", "", nil), services.KindTimeout},
		{"malformed", services.Wrap(services.ErrMalformedOutput, "prompts", "parse", "", nil), services.KindMalformedOutput},
		{"missing", services.Wrap(services.ErrMissingArtifact, "script", "", "no images", nil), services.KindMissingArtifact},
		{"exhausted", services.Wrap(services.ErrResourceExhausted, "images", "", "", nil), services.KindResourceExhausted},
		{"cancelled beats marker", services.Wrap(services.ErrExternalTool, "audio", "", "", context.Canceled), services.KindCancelled},
		{"unknown", errors.New("plain"), services.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetailsIncludesHint(t *testing.T) {
	err := services.Wrap(services.ErrResourceExhausted, "workflow", "preflight", "disk full", nil)
	details := services.Details(err)
	if details.Kind != services.KindResourceExhausted {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if !strings.Contains(details.Message, "disk full") {
		t.Fatalf("unexpected message %q", details.Message)
	}
	if details.Hint == "" {
		t.Fatal("expected hint")
	}
	if got := services.Details(nil); got.Kind != "" {
		t.Fatalf("expected empty details for nil, got %+v", got)
	}
}
