package textgen

import (
	"regexp"
	"strings"
)

var (
	ansiEscape   = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	listNumber   = regexp.MustCompile(`^\d+[.)]\s*`)
	listBullet   = regexp.MustCompile(`^[-*•]\s*`)
	scenePrefix  = regexp.MustCompile(`(?i)^scene\s*\d*\s*:\s*`)
	spinnerGlyph = strings.NewReplacer(
		"⠋", "", "⠙", "", "⠹", "", "⠸", "", "⠼", "",
		"⠴", "", "⠦", "", "⠧", "", "⠇", "", "⠏", "",
	)
)

const (
	minLineWords = 6
	minLineChars = 21
)

// CleanLines splits a model reply into content lines. Terminal escapes and
// spinner glyphs are removed, list numbering and bullets are stripped,
// preamble lines ("Here are ...") are dropped and a leading "Scene N:" label
// is removed. Lines shorter than six words or twenty-one characters are
// discarded as chatter.
func CleanLines(text string) []string {
	text = spinnerGlyph.Replace(ansiEscape.ReplaceAllString(text, ""))
	var lines []string
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "here are") {
			continue
		}
		line = listNumber.ReplaceAllString(line, "")
		line = listBullet.ReplaceAllString(line, "")
		line = strings.TrimSpace(scenePrefix.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"`)
		if len(strings.Fields(line)) < minLineWords || len(line) < minLineChars {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
