package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// FirstWords returns at most n words of text joined by single spaces.
func FirstWords(text string, n int) string {
	words := strings.Fields(text)
	if n >= 0 && len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// Truncate shortens text to limit runes, appending suffix when it cut anything.
func Truncate(text string, limit int, suffix string) string {
	runes := []rune(text)
	if limit < 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + suffix
}

// Title capitalizes each word using English casing rules. A Caser holds
// state, so each call builds its own.
func Title(text string) string {
	return cases.Title(language.English).String(strings.TrimSpace(text))
}

// Wrap breaks text into lines no longer than width runes, splitting on
// whitespace and hard-breaking words that are longer than width. Empty input
// yields no lines.
func Wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			lines = append(lines, string(current))
			current = current[:0]
		}
	}
	for _, word := range words {
		runes := []rune(word)
		for len(runes) > 0 {
			space := 0
			if len(current) > 0 {
				space = 1
			}
			if len(current)+space+len(runes) <= width {
				if space == 1 {
					current = append(current, ' ')
				}
				current = append(current, runes...)
				runes = nil
				continue
			}
			if len(current) > 0 {
				flush()
				continue
			}
			current = append(current, runes[:width]...)
			runes = runes[width:]
			flush()
		}
	}
	flush()
	return lines
}
