package preflight

import (
	"context"
	"slices"

	"siksha/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Network checks only run for generators that are enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckFreeSpace("Free space", cfg.Paths.OutputDir, uint64(cfg.Workflow.MinFreeMiB)),
	}
	if cfg.LLM.Enabled {
		results = append(results, CheckLLM(ctx, "Text LLM", cfg))
	}
	if slices.Contains(cfg.Images.Providers, "sdwebui") {
		results = append(results, CheckEndpoint(ctx, "Stable Diffusion WebUI", cfg.Images.SDWebUIURL+"/sdapi/v1/sd-models"))
	}
	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
