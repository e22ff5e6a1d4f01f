// Package deps reports which external programs the pipeline can reach.
// Only ffmpeg is required; every other tool has a fallback provider.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"siksha/internal/config"
	"siksha/internal/services"
)

// Requirement defines an external program siksha may run.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the program to read its version.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the programs the configured pipeline uses.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpeg.Binary, Description: "Encodes lesson frames and muxes the voiceover", VersionArgs: []string{"-version"}},
		{Name: "FFprobe", Command: cfg.FFmpeg.ProbeBinary, Description: "Measures voiceover length (falls back to the WAV header)", Optional: true, VersionArgs: []string{"-version"}},
		{Name: "edge-tts", Command: cfg.Speech.EdgeTTSBinary, Description: "Neural voiceover (falls back to espeak-ng)", Optional: true, VersionArgs: []string{"--version"}},
		{Name: "espeak-ng", Command: cfg.Speech.EspeakBinary, Description: "Offline voiceover (falls back to a silent track)", Optional: true, VersionArgs: []string{"--version"}},
	}
	if cfg.Ollama.Enabled {
		reqs = append(reqs, Requirement{Name: "Ollama", Command: cfg.Ollama.Binary, Description: "Local text generation (falls back to templates)", Optional: true, VersionArgs: []string{"--version"}})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Check resolves every requirement and, for available programs, reads the
// first line of their version output.
func Check(ctx context.Context, requirements []Requirement) []Status {
	results := CheckBinaries(requirements)
	for i, req := range requirements {
		if !results[i].Available || len(req.VersionArgs) == 0 {
			continue
		}
		results[i].Version = version(ctx, results[i].Command, req.VersionArgs)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional programs.
func MissingRequired(results []Status) []string {
	var missing []string
	for _, r := range results {
		if !r.Available && !r.Optional {
			missing = append(missing, r.Name)
		}
	}
	return missing
}

func version(ctx context.Context, command string, args []string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := services.Command{Stage: "deps", Binary: command, Args: args}.Run(ctx)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}
