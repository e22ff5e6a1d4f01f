package services

import "context"

type contextKey string

const (
	runKeyKey    contextKey = "run_key"
	stageKey     contextKey = "stage"
	providerKey  contextKey = "provider"
	requestIDKey contextKey = "request_id"
)

// WithRunKey annotates context with the lesson folder the run writes into.
func WithRunKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, runKeyKey, key)
}

// RunKeyFromContext extracts the run key if present.
func RunKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithProvider annotates context with the stage provider currently attempting work.
func WithProvider(ctx context.Context, provider string) context.Context {
	if provider == "" {
		return ctx
	}
	return context.WithValue(ctx, providerKey, provider)
}

// ProviderFromContext returns the provider name if present.
func ProviderFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(providerKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
