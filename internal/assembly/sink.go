package assembly

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"siksha/internal/services"
)

// Spec describes the stream an Encoder receives.
type Spec struct {
	Width  int
	Height int
	FPS    int
	Output string
}

// FrameSink consumes frames in presentation order. Close finalizes the
// output; a sink must not be reused after Close.
type FrameSink interface {
	WriteFrame(frame *image.RGBA) error
	Close() error
}

// Encoder opens a sink for one video.
type Encoder interface {
	Open(ctx context.Context, spec Spec) (FrameSink, error)
}

// FFmpegEncoder pipes raw RGBA frames into ffmpeg and encodes H.264
// without audio.
type FFmpegEncoder struct {
	Binary string
	Preset string
}

// Args returns the ffmpeg arguments for spec writing to output.
func (e FFmpegEncoder) Args(spec Spec, output string) []string {
	preset := e.Preset
	if preset == "" {
		preset = "fast"
	}
	return []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", fmt.Sprint(spec.FPS),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		"-an",
		output,
	}
}

// Open starts ffmpeg. The video is written beside spec.Output and moved into
// place when Close succeeds.
func (e FFmpegEncoder) Open(ctx context.Context, spec Spec) (FrameSink, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.FPS <= 0 {
		return nil, services.Wrap(services.ErrValidation, StageName, "open encoder", fmt.Sprintf("invalid geometry %dx%d@%d", spec.Width, spec.Height, spec.FPS), nil)
	}
	ext := filepath.Ext(spec.Output)
	partial := strings.TrimSuffix(spec.Output, ext) + ".partial" + ext

	pr, pw := io.Pipe()
	sink := &ffmpegSink{spec: spec, partial: partial, pw: pw, done: make(chan error, 1)}
	cmd := services.Command{Stage: StageName, Binary: e.Binary, Args: e.Args(spec, partial), Stdin: pr}
	go func() {
		_, err := cmd.Run(ctx)
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.Close()
		}
		sink.done <- err
	}()
	return sink, nil
}

type ffmpegSink struct {
	spec    Spec
	partial string
	pw      *io.PipeWriter
	done    chan error
	closed  bool
}

func (s *ffmpegSink) WriteFrame(frame *image.RGBA) error {
	b := frame.Bounds()
	if b.Dx() != s.spec.Width || b.Dy() != s.spec.Height {
		return services.Wrap(services.ErrValidation, StageName, "write frame", fmt.Sprintf("frame is %dx%d, stream is %dx%d", b.Dx(), b.Dy(), s.spec.Width, s.spec.Height), nil)
	}
	if frame.Stride == 4*b.Dx() {
		_, err := s.pw.Write(frame.Pix[:4*b.Dx()*b.Dy()])
		return err
	}
	for y := 0; y < b.Dy(); y++ {
		off := y * frame.Stride
		if _, err := s.pw.Write(frame.Pix[off : off+4*b.Dx()]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ffmpegSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pw.Close()
	if err := <-s.done; err != nil {
		os.Remove(s.partial)
		return err
	}
	if err := os.Rename(s.partial, s.spec.Output); err != nil {
		return services.Wrap(services.ErrTransient, StageName, "finalize video", s.spec.Output, err)
	}
	return nil
}
