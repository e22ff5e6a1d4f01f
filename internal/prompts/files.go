package prompts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"siksha/internal/fileutil"
)

var numbered = regexp.MustCompile(`^\d+\.\s*`)

// WriteFile stores prompts as "1. prompt" lines.
func WriteFile(path string, prompts []string) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		for i, p := range prompts {
			if _, err := fmt.Fprintf(w, "%d. %s\n", i+1, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadFile loads prompts written by WriteFile.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(numbered.ReplaceAllString(scanner.Text(), "")); line != "" {
			out = append(out, line)
		}
	}
	return out, scanner.Err()
}
