package stage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"siksha/internal/services"
)

func fixed(name, value string) Func[string, string] {
	return Func[string, string]{ProviderName: name, Fn: func(context.Context, string) (string, error) {
		return value, nil
	}}
}

func failing(name string, err error) Func[string, string] {
	return Func[string, string]{ProviderName: name, Fn: func(context.Context, string) (string, error) {
		return "", err
	}}
}

func TestChainFirstProviderWins(t *testing.T) {
	chain := NewChain[string, string]("prompts", nil, fixed("llm", "a"), fixed("template", "b"))
	res, err := chain.Run(context.Background(), "in")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Value != "a" || res.Provider != "llm" || res.Fallback || len(res.Failures) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestChainFallsBackAndRecordsFailures(t *testing.T) {
	chain := NewChain[string, string]("images", nil,
		failing("sdwebui", services.Wrap(services.ErrExternalTool, "images", "sdwebui", "connection refused", nil)),
		failing("pollinations", services.Wrap(services.ErrMalformedOutput, "images", "pollinations", "not an image", nil)),
		fixed("placeholder", "ok"),
	)
	res, err := chain.Run(context.Background(), "in")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Fallback || res.Provider != "placeholder" {
		t.Fatalf("expected placeholder fallback, got %+v", res)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(res.Failures))
	}
	if res.Failures[0].Kind != services.KindExternalTool || res.Failures[1].Kind != services.KindMalformedOutput {
		t.Fatalf("unexpected failure kinds: %+v", res.Failures)
	}
	winner, failed := Provenance(res)
	if winner != "placeholder" || len(failed) != 2 || failed[1] != "pollinations:malformed_output" {
		t.Fatalf("unexpected provenance %q %v", winner, failed)
	}
}

func TestChainExhausted(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChain[string, string]("audio", nil, failing("edge-tts", boom), failing("espeak-ng", boom))
	res, err := chain.Run(context.Background(), "in")
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	if !errors.Is(err, services.ErrExternalTool) || !errors.Is(err, boom) {
		t.Fatalf("unexpected error chain: %v", err)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(res.Failures))
	}
}

func TestChainNoProviders(t *testing.T) {
	_, err := NewChain[string, string]("mux", nil, nil).Run(context.Background(), "in")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestChainTimeoutPerProvider(t *testing.T) {
	slow := Func[string, string]{
		ProviderName: "slow",
		Limit:        20 * time.Millisecond,
		Fn: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	chain := NewChain[string, string]("script", nil, slow, fixed("template", "done"))
	res, err := chain.Run(context.Background(), "in")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Value != "done" {
		t.Fatalf("expected fallback value, got %q", res.Value)
	}
	if res.Failures[0].Kind != services.KindTimeout {
		t.Fatalf("expected timeout kind, got %s", res.Failures[0].Kind)
	}
}

func TestChainCancelledStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	first := Func[string, string]{ProviderName: "first", Fn: func(context.Context, string) (string, error) {
		calls++
		cancel()
		return "", errors.New("interrupted")
	}}
	second := Func[string, string]{ProviderName: "second", Fn: func(context.Context, string) (string, error) {
		calls++
		return "never", nil
	}}
	_, err := NewChain[string, string]("prompts", nil, first, second).Run(ctx, "in")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected chain to stop after cancellation, calls=%d", calls)
	}
}

func TestChainRecoversPanic(t *testing.T) {
	bad := Func[string, string]{ProviderName: "bad", Fn: func(context.Context, string) (string, error) {
		panic("nil map")
	}}
	res, err := NewChain[string, string]("images", nil, bad, fixed("placeholder", "ok")).Run(context.Background(), "in")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "placeholder" || len(res.Failures) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := fmt.Sprint(res.Failures[0].Err); got != "provider bad panicked: nil map" {
		t.Fatalf("unexpected panic error %q", got)
	}
}
