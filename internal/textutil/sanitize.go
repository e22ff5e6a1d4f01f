package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a path segment.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. Leading dots are dropped so a topic can never name
// "." or "..".
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimLeft(strings.TrimSpace(fileNameReplacer.Replace(name)), ".")
}
