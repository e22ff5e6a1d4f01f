// Package textgen produces free-form text from a prompt using either an
// OpenAI-compatible HTTP endpoint or a local `ollama run` subprocess, and
// normalizes the numbered-list replies both return.
package textgen

import (
	"context"
	"strings"
	"time"

	"siksha/internal/config"
	"siksha/internal/services"
	"siksha/internal/services/llm"
)

// Generator turns a prompt into raw reply text.
type Generator interface {
	Name() string
	Timeout() time.Duration
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLM generates through the chat completions client.
type LLM struct {
	client  *llm.Client
	timeout time.Duration
}

// NewLLM wraps client. timeout bounds one Generate call including retries.
func NewLLM(client *llm.Client, timeout time.Duration) *LLM {
	return &LLM{client: client, timeout: timeout}
}

func (g *LLM) Name() string { return "llm" }

func (g *LLM) Timeout() time.Duration { return g.timeout }

func (g *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.Complete(ctx, "", prompt)
}

// Ollama pipes the prompt to `ollama run <model>` on stdin.
type Ollama struct {
	Binary string
	Model  string
	Limit  time.Duration
}

func (g *Ollama) Name() string { return "ollama" }

func (g *Ollama) Timeout() time.Duration { return g.Limit }

func (g *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	model := strings.TrimSpace(g.Model)
	if model == "" {
		model = "llama3"
	}
	out, err := services.Command{
		Stage:  "textgen",
		Binary: g.Binary,
		Args:   []string{"run", model},
		Stdin:  strings.NewReader(prompt),
	}.Run(ctx)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FromConfig returns the enabled generators in preference order: the HTTP
// endpoint first, then the ollama CLI.
func FromConfig(cfg *config.Config) []Generator {
	var gens []Generator
	if cfg.LLM.Enabled {
		client := llm.NewClient(llm.Config{
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Referer:           cfg.LLM.Referer,
			Title:             cfg.LLM.Title,
			TimeoutSeconds:    cfg.LLM.TimeoutSeconds,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		})
		gens = append(gens, NewLLM(client, cfg.LLMTimeout()))
	}
	if cfg.Ollama.Enabled {
		gens = append(gens, &Ollama{
			Binary: cfg.Ollama.Binary,
			Model:  cfg.Ollama.Model,
			Limit:  time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
		})
	}
	return gens
}
