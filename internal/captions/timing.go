// Package captions turns narration lines and an audio duration into timed
// caption intervals and SRT tracks.
package captions

import (
	"strings"
)

const (
	// MinWordsPerSecond floors the speaking rate so short or silent audio
	// never yields infinite or negative durations.
	MinWordsPerSecond = 2.0
	// SentencePause separates consecutive sentences.
	SentencePause = 0.4
	// FinalPause trails the last sentence.
	FinalPause = 0.1
)

// Interval is a caption window in seconds. End is inclusive for lookups.
type Interval struct {
	Start float64
	End   float64
}

// Unit is one narration sentence with its word count and timing.
type Unit struct {
	Text  string
	Words int
	Interval
}

// Estimate assigns consecutive intervals to lines across duration seconds.
// The speaking rate is total words over duration, floored at
// MinWordsPerSecond; each sentence lasts words/rate and is followed by a
// pause before the next one starts.
func Estimate(lines []string, duration float64) []Unit {
	units := make([]Unit, len(lines))
	total := 0
	for i, line := range lines {
		text := strings.TrimSpace(line)
		units[i] = Unit{Text: text, Words: len(strings.Fields(text))}
		total += units[i].Words
	}

	rate := MinWordsPerSecond
	if duration > 0 {
		rate = max(float64(total)/duration, MinWordsPerSecond)
	}

	var cursor float64
	for i := range units {
		base := float64(units[i].Words) / rate
		pause := SentencePause
		if i == len(units)-1 {
			pause = FinalPause
		}
		units[i].Start = cursor
		units[i].End = cursor + base
		cursor += base + pause
	}
	return units
}

// Active returns the text of the first unit whose interval contains t, or
// "" when t falls in a gap or outside every interval.
func Active(units []Unit, t float64) string {
	if idx := ActiveIndex(units, t); idx >= 0 {
		return units[idx].Text
	}
	return ""
}

// ActiveIndex is Active returning the unit index, or -1.
func ActiveIndex(units []Unit, t float64) int {
	for i, unit := range units {
		if unit.Start <= t && t <= unit.End {
			return i
		}
	}
	return -1
}

// Span returns the end of the last interval, 0 for no units.
func Span(units []Unit) float64 {
	if len(units) == 0 {
		return 0
	}
	return units[len(units)-1].End
}
