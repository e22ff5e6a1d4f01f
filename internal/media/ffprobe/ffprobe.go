package ffprobe

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"siksha/internal/services"
)

// Result is the subset of ffprobe JSON the pipeline reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one elementary stream.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format carries container metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect runs ffprobe against path and decodes its JSON report.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect", "empty path", nil)
	}
	out, err := services.Command{
		Stage:  "ffprobe",
		Binary: binary,
		Args:   []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path},
	}.Run(ctx)
	if err != nil {
		return Result{}, err
	}
	return Parse(out)
}

// Parse decodes an ffprobe JSON payload.
func Parse(payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, services.Wrap(services.ErrMalformedOutput, "ffprobe", "parse", "invalid json", err)
	}
	return result, nil
}

// Duration probes path and returns its duration in seconds. A container
// without a usable duration falls back to the longest audio stream.
func Duration(ctx context.Context, binary, path string) (float64, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return 0, err
	}
	if d := result.DurationSeconds(); d > 0 {
		return d, nil
	}
	return 0, services.Wrap(services.ErrMalformedOutput, "ffprobe", "duration", "no duration reported for "+path, nil)
}

// DurationSeconds returns the container duration, else the longest stream
// duration, else 0.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	var longest float64
	for _, s := range r.Streams {
		if d := parseFloat(s.Duration); d > longest {
			longest = d
		}
	}
	return longest
}

// HasAudio reports whether any audio stream exists.
func (r Result) HasAudio() bool { return r.firstOfType("audio") != nil }

// VideoSize returns the first video stream's dimensions.
func (r Result) VideoSize() (int, int, bool) {
	s := r.firstOfType("video")
	if s == nil {
		return 0, 0, false
	}
	return s.Width, s.Height, true
}

func (r Result) firstOfType(kind string) *Stream {
	for i := range r.Streams {
		if strings.EqualFold(r.Streams[i].CodecType, kind) {
			return &r.Streams[i]
		}
	}
	return nil
}

func parseFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed < 0 {
		return 0
	}
	return parsed
}
