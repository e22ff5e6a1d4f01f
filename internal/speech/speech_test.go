package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"siksha/internal/artifacts"
	"siksha/internal/config"
	"siksha/internal/services"
	"siksha/internal/stage"
)

func writeStub(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

// edgeStub writes a fake MP3 to the --write-media path.
const edgeStub = `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--write-media" ]; then out="$2"; fi
  shift
done
printf 'ID3fake-mp3' > "$out"
`

func TestEstimateDuration(t *testing.T) {
	if got := EstimateDuration(150, 150); got != 60 {
		t.Fatalf("EstimateDuration(150,150) = %v", got)
	}
	if got := EstimateDuration(75, 0); got != 30 {
		t.Fatalf("default pace: got %v", got)
	}
}

func TestWriteSilenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.wav")
	if err := WriteSilence(path, 22050, 2); err != nil {
		t.Fatalf("WriteSilence: %v", err)
	}
	d, err := WAVDuration(path)
	if err != nil {
		t.Fatalf("WAVDuration: %v", err)
	}
	if diff := d - 2*time.Second; diff < -10*time.Millisecond || diff > 10*time.Millisecond {
		t.Fatalf("duration = %v, want ~2s", d)
	}
}

func TestWAVDurationRejectsOtherFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.wav")
	if err := os.WriteFile(path, []byte("ID3 not really a wav file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := WAVDuration(path)
	if !errors.Is(err, services.ErrMalformedOutput) {
		t.Fatalf("expected malformed output, got %v", err)
	}
}

func TestEdgeTTSPassesVoiceSettings(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	stub := writeStub(t, "edge-tts", `echo "$@" > `+argsFile+"\n"+edgeStub)
	out := filepath.Join(t.TempDir(), "output.wav")

	p := &EdgeTTS{Binary: stub, Voice: "en-US-AriaNeural", Rate: "+5%", Pitch: "+2Hz", Limit: time.Minute}
	got, err := p.Attempt(context.Background(), Input{Script: "Plants make food from light.", Out: out})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if got.Path != out || got.Bytes == 0 {
		t.Fatalf("unexpected output %+v", got)
	}
	args, _ := os.ReadFile(argsFile)
	for _, want := range []string{"--voice en-US-AriaNeural", "--rate=+5%", "--pitch=+2Hz", "--text Plants make food"} {
		if !strings.Contains(string(args), want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
	if p.Name() != "edge-tts:en-US-AriaNeural" {
		t.Fatalf("name = %q", p.Name())
	}
}

func TestEmptyOutputIsMalformed(t *testing.T) {
	stub := writeStub(t, "edge-tts", "exit 0\n")
	out := filepath.Join(t.TempDir(), "output.wav")
	p := &EdgeTTS{Binary: stub, Voice: "en-GB-SoniaNeural"}
	_, err := p.Attempt(context.Background(), Input{Script: "Some words here.", Out: out})
	if !errors.Is(err, services.ErrMalformedOutput) {
		t.Fatalf("expected malformed output, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output should not exist, stat err %v", statErr)
	}
}

func TestEspeakReadsScriptFromStdin(t *testing.T) {
	stub := writeStub(t, "espeak-ng", `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-w" ]; then out="$2"; fi
  shift
done
cat > "$out"
`)
	out := filepath.Join(t.TempDir(), "output.wav")
	p := &Espeak{Binary: stub, Rate: 175}
	if _, err := p.Attempt(context.Background(), Input{Script: "Gravity pulls things down.", Out: out}); err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "Gravity pulls things down." {
		t.Fatalf("espeak got %q", data)
	}
}

func TestStageFallsBackToSilence(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.Voices = []string{"en-US-AriaNeural"}
	cfg.Speech.EdgeTTSBinary = writeStub(t, "edge-tts", "echo 'no network' >&2\nexit 1\n")
	cfg.Speech.EspeakBinary = filepath.Join(t.TempDir(), "missing-espeak")
	cfg.Speech.SampleRate = 8000

	layout := artifacts.New(t.TempDir(), "gravity__00000001")
	if err := layout.Ensure(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.ScriptPath(), []byte(strings.Repeat("word ", 150)), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStage(&cfg, nil)
	job := &stage.Job{Topic: "gravity", Layout: layout}
	if err := s.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := s.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	d, err := WAVDuration(layout.AudioPath())
	if err != nil {
		t.Fatalf("WAVDuration: %v", err)
	}
	if d < 59*time.Second || d > 61*time.Second {
		t.Fatalf("silent track = %v, want ~60s", d)
	}
}

func TestStageRequiresScript(t *testing.T) {
	cfg := config.Default()
	s := NewStage(&cfg, nil)
	job := &stage.Job{Layout: artifacts.New(t.TempDir(), "empty__00000000")}
	err := s.Prepare(context.Background(), job)
	if !errors.Is(err, services.ErrMissingArtifact) {
		t.Fatalf("expected missing artifact, got %v", err)
	}
}
