// Package narration writes the lesson voice script: one sentence per image,
// in image order.
package narration

import (
	"fmt"
	"strings"

	"siksha/internal/audience"
)

// StageName labels logs, errors and progress for this stage.
const StageName = "script"

// MinWords is the shortest model sentence accepted as narration.
const MinWords = 8

// Input describes the lesson and how many scenes need a sentence.
type Input struct {
	Topic     string
	Audience  audience.Level
	Interests []string
	Scenes    int
}

// Instruction is the text sent to a language model.
func Instruction(in Input) string {
	level := in.Audience.String()
	interests := strings.Join(in.Interests, ", ")
	n := in.Scenes
	var b strings.Builder
	fmt.Fprintf(&b, "You are creating a detailed educational narration script for a video about \"%s\" for %s students interested in %s.\n", in.Topic, level, interests)
	b.WriteString(in.Audience.NarrationInstruction())
	b.WriteString("\n")
	fmt.Fprintf(&b, "The video has %d educational scenes/images that will be shown in sequence. \n\n", n)
	fmt.Fprintf(&b, "Create exactly %d narration sentences - one for each scene. Each sentence should:\n", n)
	fmt.Fprintf(&b, "- Be appropriate for %s level understanding\n", level)
	b.WriteString("- Be 12-18 words long for clear narration\n")
	b.WriteString("- Build upon the previous sentence to create a flowing educational story\n")
	fmt.Fprintf(&b, "- Be specific to the topic \"%s\"\n", in.Topic)
	fmt.Fprintf(&b, "- Connect to student interests in %s\n", interests)
	fmt.Fprintf(&b, "- Explain concepts progressively from basic to advanced (appropriate for %s)\n", level)
	fmt.Fprintf(&b, "- Use engaging, educational language suitable for %s students\n\n", level)
	fmt.Fprintf(&b, "Write exactly %d sentences, one per line, that will narrate this educational video about %s for %s students:\n1.\n2.\n3.\n...", n, in.Topic, level)
	return b.String()
}

// Templates returns the model-free script: a welcome, the fundamentals,
// middle scenes and a closing line.
func Templates(in Input) []string {
	out := make([]string, 0, in.Scenes)
	for i := 0; i < in.Scenes; i++ {
		var line string
		switch {
		case i == 0:
			line = fmt.Sprintf("Welcome to our %s-level exploration of %s and its important concepts.", in.Audience, in.Topic)
		case i == 1:
			line = fmt.Sprintf("Let's understand the fundamental principles of %s at the %s level.", in.Topic, in.Audience)
		case i == in.Scenes-1:
			line = fmt.Sprintf("This completes our %s-level journey through %s and its applications.", in.Audience, in.Topic)
		default:
			line = fmt.Sprintf("This %s-level concept reveals another important aspect of %s.", in.Audience, in.Topic)
		}
		out = append(out, line)
	}
	return out
}

// Pad fills lines to the scene count and drops any excess.
func Pad(lines []string, in Input) []string {
	if len(lines) > in.Scenes {
		return lines[:in.Scenes]
	}
	for len(lines) < in.Scenes {
		lines = append(lines, fmt.Sprintf("This concept helps %s students understand another important aspect of %s.", in.Audience, in.Topic))
	}
	return lines
}

// Join renders the lines as one passage for speech synthesis.
func Join(lines []string) string {
	return strings.Join(lines, " ")
}

// Format renders the script file body: one narration line per text line.
// Whitespace inside a line is collapsed so a line never spans two.
func Format(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Split recovers the narration lines written by Format.
func Split(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
