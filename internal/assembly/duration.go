package assembly

import (
	"context"
	"time"

	"siksha/internal/media/ffprobe"
	"siksha/internal/speech"
	"siksha/internal/stage"
	"siksha/internal/textutil"
)

type durationInput struct {
	Audio  string
	Script string
}

type probeDuration struct {
	binary string
	limit  time.Duration
}

func (p probeDuration) Name() string { return "ffprobe" }

func (p probeDuration) Timeout() time.Duration { return p.limit }

func (p probeDuration) Attempt(ctx context.Context, in durationInput) (float64, error) {
	return ffprobe.Duration(ctx, p.binary, in.Audio)
}

type headerDuration struct{}

func (headerDuration) Name() string { return "wav-header" }

func (headerDuration) Attempt(_ context.Context, in durationInput) (float64, error) {
	d, err := speech.WAVDuration(in.Audio)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

type wordEstimate struct {
	wpm int
}

func (wordEstimate) Name() string { return "word-estimate" }

func (p wordEstimate) Attempt(_ context.Context, in durationInput) (float64, error) {
	return speech.EstimateDuration(textutil.WordCount(in.Script), p.wpm), nil
}

func newDurationChain(s *Stage) *stage.Chain[durationInput, float64] {
	return stage.NewChain[durationInput, float64](StageName, s.logger,
		probeDuration{binary: s.ffmpeg.ProbeBinary, limit: time.Duration(s.ffmpeg.ProbeTimeoutSecond) * time.Second},
		headerDuration{},
		wordEstimate{wpm: s.wordsPerMinute},
	)
}
