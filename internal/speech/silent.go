package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"siksha/internal/services"
)

const silentChunk = 8192

// Silent writes a mono 16-bit PCM WAV of silence lasting as long as the
// script would take to read aloud.
type Silent struct {
	SampleRate     int
	WordsPerMinute int
}

func (p *Silent) Name() string { return "silent" }

func (p *Silent) Attempt(ctx context.Context, in Input) (Output, error) {
	return produce(ctx, "silent", in, func(_ context.Context, scratch string) error {
		seconds := EstimateDuration(len(strings.Fields(in.Script)), p.WordsPerMinute)
		return WriteSilence(scratch, p.sampleRate(), seconds)
	})
}

func (p *Silent) sampleRate() int {
	if p.SampleRate <= 0 {
		return 22050
	}
	return p.SampleRate
}

// WriteSilence writes seconds of silence at sampleRate to path.
func WriteSilence(path string, sampleRate int, seconds float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	remaining := int(seconds * float64(sampleRate))
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, silentChunk),
		SourceBitDepth: 16,
	}
	for remaining > 0 {
		n := min(remaining, silentChunk)
		buf.Data = buf.Data[:n]
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("write wav samples: %w", err)
		}
		remaining -= n
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

// WAVDuration reads the duration from a RIFF/WAVE header. Non-WAV content,
// such as the MP3 stream edge-tts writes, is reported as malformed.
func WAVDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, services.Wrap(services.ErrMissingArtifact, StageName, "wav duration", path, err)
	}
	defer f.Close()
	if !wav.NewDecoder(f).IsValidFile() {
		return 0, services.Wrap(services.ErrMalformedOutput, StageName, "wav duration", "not a wav file", nil)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, services.Wrap(services.ErrTransient, StageName, "wav duration", "rewind", err)
	}
	d, err := wav.NewDecoder(f).Duration()
	if err != nil {
		return 0, services.Wrap(services.ErrMalformedOutput, StageName, "wav duration", "read header", err)
	}
	return d, nil
}
