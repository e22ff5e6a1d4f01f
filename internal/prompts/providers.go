package prompts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"siksha/internal/services"
	"siksha/internal/stage"
	"siksha/internal/textgen"
)

// StageName labels logs, errors and progress for this stage.
const StageName = "prompts"

type modelProvider struct {
	gen textgen.Generator
}

func (p modelProvider) Name() string { return p.gen.Name() }

func (p modelProvider) Timeout() time.Duration { return p.gen.Timeout() }

// Attempt keeps cleaned lines longer than five words and pads the rest.
// A reply with no usable line is malformed so the chain moves on.
func (p modelProvider) Attempt(ctx context.Context, in Input) ([]string, error) {
	reply, err := p.gen.Generate(ctx, Instruction(in))
	if err != nil {
		return nil, err
	}
	lines := textgen.CleanLines(reply)
	if len(lines) > in.count() {
		lines = lines[:in.count()]
	}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(strings.Fields(line)) > 5 {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, p.gen.Name(), "reply contained no usable prompts", nil)
	}
	return Pad(kept, in), nil
}

type templateProvider struct{}

func (templateProvider) Name() string { return "template" }

func (templateProvider) Attempt(_ context.Context, in Input) ([]string, error) {
	return Templates(in), nil
}

// NewChain orders the text generators ahead of the template provider,
// which never fails.
func NewChain(gens []textgen.Generator, logger *slog.Logger) *stage.Chain[Input, []string] {
	providers := make([]stage.Provider[Input, []string], 0, len(gens)+1)
	for _, gen := range gens {
		providers = append(providers, modelProvider{gen: gen})
	}
	providers = append(providers, templateProvider{})
	return stage.NewChain(StageName, logger, providers...)
}
