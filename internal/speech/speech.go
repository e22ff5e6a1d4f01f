package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"siksha/internal/fileutil"
	"siksha/internal/services"
)

// StageName labels logs, errors and progress for this stage.
const StageName = "audio"

// DefaultWordsPerMinute is the narration pace assumed when nothing better
// is known.
const DefaultWordsPerMinute = 150

// Input is the script to speak and the file to produce.
type Input struct {
	Script string
	Out    string
}

// Output describes the written voiceover.
type Output struct {
	Path  string
	Bytes int64
}

// EstimateDuration is the narration length of words at wpm words per minute.
func EstimateDuration(words, wpm int) float64 {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	return float64(words) / float64(wpm) * 60
}

// produce runs write against a scratch path beside in.Out and moves the
// result into place only when it is non-empty, so a failed provider never
// leaves a truncated voiceover behind.
func produce(ctx context.Context, provider string, in Input, write func(ctx context.Context, scratch string) error) (Output, error) {
	if strings.TrimSpace(in.Script) == "" {
		return Output{}, services.Wrap(services.ErrValidation, StageName, provider, "empty script", nil)
	}
	scratch := filepath.Join(filepath.Dir(in.Out), fmt.Sprintf(".%s.%s.partial", filepath.Base(in.Out), provider))
	defer os.Remove(scratch)

	if err := write(ctx, scratch); err != nil {
		return Output{}, err
	}
	if !fileutil.NonEmpty(scratch) {
		return Output{}, services.Wrap(services.ErrMalformedOutput, StageName, provider, "no audio written", nil)
	}
	if err := os.Rename(scratch, in.Out); err != nil {
		return Output{}, services.Wrap(services.ErrTransient, StageName, provider, "move audio into place", err)
	}
	info, err := os.Stat(in.Out)
	if err != nil {
		return Output{}, services.Wrap(services.ErrTransient, StageName, provider, "stat audio", err)
	}
	return Output{Path: in.Out, Bytes: info.Size()}, nil
}

// EdgeTTS speaks with one Microsoft neural voice through the edge-tts CLI.
type EdgeTTS struct {
	Binary string
	Voice  string
	Rate   string
	Pitch  string
	Limit  time.Duration
}

func (p *EdgeTTS) Name() string { return "edge-tts:" + p.Voice }

func (p *EdgeTTS) Timeout() time.Duration { return p.Limit }

func (p *EdgeTTS) Attempt(ctx context.Context, in Input) (Output, error) {
	return produce(ctx, "edge-tts", in, func(ctx context.Context, scratch string) error {
		args := []string{"--voice", p.Voice}
		if p.Rate != "" {
			args = append(args, "--rate="+p.Rate)
		}
		if p.Pitch != "" {
			args = append(args, "--pitch="+p.Pitch)
		}
		args = append(args, "--text", in.Script, "--write-media", scratch)
		_, err := services.Command{Stage: StageName, Binary: p.Binary, Args: args}.Run(ctx)
		return err
	})
}

// Espeak speaks offline with espeak-ng, reading the script from stdin.
type Espeak struct {
	Binary string
	Rate   int
	Limit  time.Duration
}

func (p *Espeak) Name() string { return "espeak-ng" }

func (p *Espeak) Timeout() time.Duration { return p.Limit }

func (p *Espeak) Attempt(ctx context.Context, in Input) (Output, error) {
	return produce(ctx, "espeak-ng", in, func(ctx context.Context, scratch string) error {
		rate := p.Rate
		if rate <= 0 {
			rate = 175
		}
		_, err := services.Command{
			Stage:  StageName,
			Binary: p.Binary,
			Args:   []string{"-s", fmt.Sprint(rate), "-w", scratch, "--stdin"},
			Stdin:  strings.NewReader(in.Script),
		}.Run(ctx)
		return err
	})
}
