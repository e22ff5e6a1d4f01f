// Package audience models the class level a lesson is pitched at and the
// wording each level contributes to generation prompts.
package audience

import "strings"

// Level is a normalized audience level name.
type Level string

const (
	Elementary   Level = "elementary"
	MiddleSchool Level = "middle school"
	HighSchool   Level = "high school"
	College      Level = "college"
	Graduate     Level = "graduate"
)

// Default is used for empty or unrecognised input.
const Default = HighSchool

type profile struct {
	imageContext string
	instruction  string
}

var profiles = map[Level]profile{
	Elementary: {
		imageContext: "simple, basic concepts, colorful, fun illustrations suitable for young students",
		instruction:  "Use simple words, short sentences, and exciting language that young students can easily understand. Make it fun and engaging.",
	},
	MiddleSchool: {
		imageContext: "clear explanations, engaging visuals, age-appropriate complexity for middle school students",
		instruction:  "Use clear explanations with moderate vocabulary. Include interesting facts and relatable examples for middle school students.",
	},
	HighSchool: {
		imageContext: "detailed concepts, academic illustrations, appropriate complexity for high school level",
		instruction:  "Use academic language appropriate for high school level. Include detailed explanations and real-world applications.",
	},
	College: {
		imageContext: "advanced concepts, technical diagrams, university-level complexity and detail",
		instruction:  "Use sophisticated vocabulary and complex concepts appropriate for university students. Include technical details and advanced applications.",
	},
	Graduate: {
		imageContext: "sophisticated analysis, research-level illustrations, advanced academic content",
		instruction:  "Use advanced academic language and complex theoretical concepts appropriate for graduate-level study.",
	},
}

// Parse normalizes user input. Underscores and hyphens are accepted in place
// of spaces ("middle_school"); anything unknown maps to Default.
func Parse(value string) Level {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")
	if _, ok := profiles[Level(normalized)]; ok {
		return Level(normalized)
	}
	return Default
}

// Known reports whether value names a level without falling back.
func Known(value string) bool {
	_, ok := profiles[Level(strings.ToLower(strings.TrimSpace(value)))]
	return ok
}

// All lists levels from youngest to most advanced.
func All() []Level {
	return []Level{Elementary, MiddleSchool, HighSchool, College, Graduate}
}

func (l Level) String() string { return string(l) }

// ImageContext describes the visual complexity image prompts should aim for.
func (l Level) ImageContext() string {
	return l.profile().imageContext
}

// NarrationInstruction describes the vocabulary and tone of narration.
func (l Level) NarrationInstruction() string {
	return l.profile().instruction
}

func (l Level) profile() profile {
	if p, ok := profiles[l]; ok {
		return p
	}
	return profiles[Default]
}
