package prompts

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"siksha/internal/audience"
	"siksha/internal/services"
	"siksha/internal/textgen"
)

type fakeGen struct {
	name  string
	reply string
	err   error
	seen  string
}

func (f *fakeGen) Name() string { return f.name }
func (f *fakeGen) Timeout() time.Duration { return time.Second }
func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.seen = prompt
	return f.reply, f.err
}

func lesson() Input {
	return Input{Topic: "Photosynthesis", Audience: audience.MiddleSchool, Interests: []string{"gardening", "art"}}
}

func TestInstructionMentionsLessonDetails(t *testing.T) {
	text := Instruction(lesson())
	for _, want := range []string{
		`Generate 15 detailed image prompts for an educational video about "Photosynthesis" for middle school students interested in gardening, art.`,
		"Make the content appropriate for middle school level with clear explanations",
		"Write exactly 15 image prompts, one per line:",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("instruction missing %q:\n%s", want, text)
		}
	}
}

func TestTemplates(t *testing.T) {
	got := Templates(lesson())
	if len(got) != DefaultCount {
		t.Fatalf("expected %d templates, got %d", DefaultCount, len(got))
	}
	if got[0] != "Educational diagram explaining Photosynthesis fundamentals for middle school students" {
		t.Fatalf("unexpected first template %q", got[0])
	}
	if got[14] != "Educational schematic explaining Photosynthesis for middle school understanding" {
		t.Fatalf("unexpected last template %q", got[14])
	}

	in := lesson()
	in.Count = 17
	if got := Templates(in); got[16] != "Educational diagram showing Photosynthesis concept 17 for middle school students" {
		t.Fatalf("unexpected padded template %q", got[16])
	}
}

func TestChainUsesModelAndPads(t *testing.T) {
	gen := &fakeGen{name: "llm", reply: "Here are your prompts:\n1. A green leaf catching bright morning sunlight in a garden\n2. Short line\n3. Water traveling up the stem of a sunflower plant\n"}
	res, err := NewChain([]textgen.Generator{gen}, nil).Run(context.Background(), lesson())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "llm" || len(res.Value) != DefaultCount {
		t.Fatalf("unexpected result provider=%s len=%d", res.Provider, len(res.Value))
	}
	if res.Value[1] != "Water traveling up the stem of a sunflower plant" {
		t.Fatalf("unexpected second prompt %q", res.Value[1])
	}
	if res.Value[2] != "Educational diagram showing Photosynthesis concept 3 for middle school students" {
		t.Fatalf("unexpected padding %q", res.Value[2])
	}
	if !strings.Contains(gen.seen, "Photosynthesis") {
		t.Fatal("generator did not receive the instruction")
	}
}

func TestChainFallsBackToTemplates(t *testing.T) {
	empty := &fakeGen{name: "llm", reply: "ok\n"}
	broken := &fakeGen{name: "ollama", err: services.Wrap(services.ErrToolMissing, "textgen", "ollama", "not found", nil)}
	res, err := NewChain([]textgen.Generator{empty, broken}, nil).Run(context.Background(), lesson())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "template" || !res.Fallback {
		t.Fatalf("expected template fallback, got %+v", res)
	}
	if res.Failures[0].Kind != services.KindMalformedOutput || res.Failures[1].Kind != services.KindExternalTool {
		t.Fatalf("unexpected failures %+v", res.Failures)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image_prompts.txt")
	want := []string{"First scene of the lesson", "Second scene of the lesson"}
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch: %q", got)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
