package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"siksha/internal/logging"
	"siksha/internal/services"
)

// Provider is one way of producing a stage output.
type Provider[In, Out any] interface {
	Name() string
	Attempt(ctx context.Context, in In) (Out, error)
}

// TimeoutProvider bounds each Attempt with its own deadline.
type TimeoutProvider interface {
	Timeout() time.Duration
}

// Failure records one provider that did not produce output.
type Failure struct {
	Provider string
	Kind     services.ErrorKind
	Err      error
}

// Result is the winning output plus every failure seen before it.
type Result[Out any] struct {
	Value    Out
	Provider string
	Fallback bool
	Failures []Failure
}

// Chain tries providers in order and returns the first success.
type Chain[In, Out any] struct {
	stage     string
	logger    *slog.Logger
	providers []Provider[In, Out]
}

// NewChain builds a chain for the named stage. Nil providers are dropped.
func NewChain[In, Out any](stage string, logger *slog.Logger, providers ...Provider[In, Out]) *Chain[In, Out] {
	if logger == nil {
		logger = logging.NewNop()
	}
	kept := make([]Provider[In, Out], 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Chain[In, Out]{stage: stage, logger: logger, providers: kept}
}

// Names lists provider names in attempt order.
func (c *Chain[In, Out]) Names() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Run attempts each provider until one succeeds. A cancelled parent
// context stops the chain immediately and is returned unwrapped.
func (c *Chain[In, Out]) Run(ctx context.Context, in In) (Result[Out], error) {
	var result Result[Out]
	if len(c.providers) == 0 {
		return result, services.Wrap(services.ErrConfiguration, c.stage, "run providers", "no providers configured", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	for i, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		name := provider.Name()
		value, err := c.attempt(ctx, provider, in)
		if err == nil {
			result.Value = value
			result.Provider = name
			result.Fallback = i > 0
			if result.Fallback {
				logger.Info("stage fallback succeeded",
					logging.String(logging.FieldEventType, "stage_fallback_used"),
					logging.String(logging.FieldProvider, name),
					logging.Int("failed_providers", len(result.Failures)),
				)
			} else {
				logger.Debug("stage provider succeeded",
					logging.String(logging.FieldEventType, "stage_attempt"),
					logging.String(logging.FieldProvider, name),
				)
			}
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		kind := services.Classify(err)
		result.Failures = append(result.Failures, Failure{Provider: name, Kind: kind, Err: err})
		logging.WarnWithContext(logger, "stage provider failed", "stage_fallback",
			logging.String(logging.FieldProvider, name),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "trying next provider"),
		)
	}

	last := result.Failures[len(result.Failures)-1]
	logging.ErrorWithContext(logger, "stage providers exhausted", "stage_exhausted",
		logging.Int("attempts", len(result.Failures)),
		logging.String(logging.FieldErrorKind, string(last.Kind)),
		logging.Error(last.Err),
	)
	return result, services.Wrap(services.ErrExternalTool, c.stage, "run providers",
		fmt.Sprintf("all %d providers failed", len(result.Failures)), last.Err)
}

func (c *Chain[In, Out]) attempt(ctx context.Context, provider Provider[In, Out], in In) (out Out, err error) {
	attemptCtx := services.WithProvider(ctx, provider.Name())
	if tp, ok := provider.(TimeoutProvider); ok && tp.Timeout() > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, tp.Timeout())
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", provider.Name(), r)
		}
	}()

	out, err = provider.Attempt(attemptCtx, in)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, c.stage, provider.Name(), "attempt exceeded its deadline", err)
	}
	return out, err
}
