package services_test

import (
	"context"
	"testing"

	"siksha/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunKey(ctx, "photosynthesis__0a1b2c3d")
	ctx = services.WithStage(ctx, "images")
	ctx = services.WithProvider(ctx, "sdwebui")
	ctx = services.WithRequestID(ctx, "req-123")

	if key, ok := services.RunKeyFromContext(ctx); !ok || key != "photosynthesis__0a1b2c3d" {
		t.Fatalf("unexpected run key: %v %v", key, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "images" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if provider, ok := services.ProviderFromContext(ctx); !ok || provider != "sdwebui" {
		t.Fatalf("unexpected provider: %v %v", provider, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithRunKey(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected blank stage to be ignored")
	}
	if _, ok := services.RunKeyFromContext(ctx); ok {
		t.Fatal("expected blank run key to be ignored")
	}
}
