package narration

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"siksha/internal/services"
	"siksha/internal/stage"
	"siksha/internal/textgen"
)

type modelProvider struct {
	gen textgen.Generator
}

func (p modelProvider) Name() string { return p.gen.Name() }

func (p modelProvider) Timeout() time.Duration { return p.gen.Timeout() }

func (p modelProvider) Attempt(ctx context.Context, in Input) ([]string, error) {
	reply, err := p.gen.Generate(ctx, Instruction(in))
	if err != nil {
		return nil, err
	}
	var kept []string
	for _, line := range textgen.CleanLines(reply) {
		if len(strings.Fields(line)) >= MinWords {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, p.gen.Name(), "reply contained no usable sentences", nil)
	}
	return Pad(kept, in), nil
}

type templateProvider struct{}

func (templateProvider) Name() string { return "template" }

func (templateProvider) Attempt(_ context.Context, in Input) ([]string, error) {
	return Templates(in), nil
}

// NewChain orders the text generators ahead of the template provider.
func NewChain(gens []textgen.Generator, logger *slog.Logger) *stage.Chain[Input, []string] {
	providers := make([]stage.Provider[Input, []string], 0, len(gens)+1)
	for _, gen := range gens {
		providers = append(providers, modelProvider{gen: gen})
	}
	providers = append(providers, templateProvider{})
	return stage.NewChain(StageName, logger, providers...)
}
