// Package prompts produces the ordered image prompts for a lesson: one
// scene description per generated image.
package prompts

import (
	"fmt"
	"strings"

	"siksha/internal/audience"
)

// DefaultCount is the number of scenes in a lesson.
const DefaultCount = 15

// Input is what the prompt stage needs to describe a lesson.
type Input struct {
	Topic     string
	Audience  audience.Level
	Interests []string
	Count     int
}

func (in Input) count() int {
	if in.Count <= 0 {
		return DefaultCount
	}
	return in.Count
}

func (in Input) interests() string {
	return strings.Join(in.Interests, ", ")
}

// Instruction is the text sent to a language model.
func Instruction(in Input) string {
	level := in.Audience.String()
	n := in.count()
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d detailed image prompts for an educational video about \"%s\" for %s students interested in %s.\n", n, in.Topic, level, in.interests())
	fmt.Fprintf(&b, "Make the content appropriate for %s level with %s.\n", level, in.Audience.ImageContext())
	b.WriteString("Each prompt should describe a specific educational scene that will be used to generate an AI image. Make each prompt:\n")
	fmt.Fprintf(&b, "- Appropriate for %s level understanding\n", level)
	fmt.Fprintf(&b, "- Highly detailed and specific to %s\n", in.Topic)
	fmt.Fprintf(&b, "- Educational and informative for %s students\n", level)
	b.WriteString("- Visually engaging and clear\n")
	b.WriteString("- Suitable for AI image generation\n")
	fmt.Fprintf(&b, "- Progressive (building from basic to advanced concepts appropriate for %s)\n", level)
	fmt.Fprintf(&b, "- Connected to %s when relevant\n\n", in.interests())
	fmt.Fprintf(&b, "Write exactly %d image prompts, one per line:\n1.\n2.\n3.\n...", n)
	return b.String()
}

var templates = []string{
	"Educational diagram explaining %[1]s fundamentals for %[2]s students",
	"Step-by-step visual guide showing %[1]s concepts appropriate for %[2]s level",
	"Professional infographic displaying %[1]s key ideas for %[2]s students",
	"Clear illustration demonstrating %[1]s principles at %[2]s level",
	"Educational chart showing %[1]s important concepts for %[2]s students",
	"Visual diagram of %[1]s essential elements appropriate for %[2]s",
	"Instructional graphic explaining %[1]s for %[2]s level understanding",
	"Academic illustration of %[1]s concepts suitable for %[2]s students",
	"Educational flowchart showing %[1]s processes for %[2]s level",
	"Clear diagram displaying %[1]s applications for %[2]s students",
	"Visual representation of %[1]s principles appropriate for %[2]s",
	"Educational poster design explaining %[1]s for %[2]s level",
	"Instructional diagram showing %[1]s concepts for %[2]s students",
	"Academic visualization of %[1]s ideas suitable for %[2]s level",
	"Educational schematic explaining %[1]s for %[2]s understanding",
}

// Templates returns the model-free prompts for in.
func Templates(in Input) []string {
	n := in.count()
	out := make([]string, 0, n)
	for i := 0; i < n && i < len(templates); i++ {
		out = append(out, fmt.Sprintf(templates[i], in.Topic, in.Audience))
	}
	return Pad(out, in)
}

// Pad fills lines up to the scene count with generic concept prompts and
// truncates any excess.
func Pad(lines []string, in Input) []string {
	n := in.count()
	if len(lines) > n {
		return lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, fmt.Sprintf("Educational diagram showing %s concept %d for %s students", in.Topic, len(lines)+1, in.Audience))
	}
	return lines
}
