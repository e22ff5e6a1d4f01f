package captions

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"siksha/internal/fileutil"
)

// maxTimestamp is 23:59:59,999 in milliseconds.
const maxTimestamp = 24*3600*1000 - 1

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Negative values clamp to
// zero and values past 23:59:59,999 clamp to that bound.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	if ms > maxTimestamp || math.IsInf(seconds, 1) {
		ms = maxTimestamp
	}
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	secs := (ms / 1000) % 60
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// ParseTimestamp reads HH:MM:SS,mmm (a period separator is also accepted).
func ParseTimestamp(value string) (float64, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ".", ",")
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	clock, frac, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(frac)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}

// WriteSRT writes units as numbered SRT cues.
func WriteSRT(w io.Writer, units []Unit) error {
	bw := bufio.NewWriter(w)
	for i, unit := range units {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, FormatTimestamp(unit.Start), FormatTimestamp(unit.End), strings.TrimSpace(unit.Text)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile atomically replaces path with the SRT rendering of units.
func WriteFile(path string, units []Unit) error {
	var buf bytes.Buffer
	if err := WriteSRT(&buf, units); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// Cue is one parsed SRT entry.
type Cue struct {
	Index int
	Interval
	Text string
}

// Parse reads SRT content. Blocks without a valid timing line are skipped.
func Parse(r io.Reader) ([]Cue, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if content == "" {
		return nil, nil
	}
	var cues []Cue
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		startText, endText, ok := strings.Cut(lines[1], "-->")
		if !ok {
			continue
		}
		start, errStart := ParseTimestamp(startText)
		end, errEnd := ParseTimestamp(endText)
		if errStart != nil || errEnd != nil {
			continue
		}
		cues = append(cues, Cue{
			Index:    index,
			Interval: Interval{Start: start, End: end},
			Text:     strings.Join(lines[2:], "\n"),
		})
	}
	return cues, nil
}

// ReadFile parses the SRT file at path.
func ReadFile(path string) ([]Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks cues for structural problems and returns one issue string
// per problem found; an empty result means the track is usable.
func Validate(cues []Cue) []string {
	if len(cues) == 0 {
		return []string{"empty_subtitle_file"}
	}
	var issues []string
	var previousEnd float64
	for i, cue := range cues {
		if cue.Index != i+1 {
			issues = append(issues, fmt.Sprintf("cue_%d: index %d out of sequence", i+1, cue.Index))
		}
		if cue.End < cue.Start {
			issues = append(issues, fmt.Sprintf("cue_%d: ends before it starts", i+1))
		}
		if i > 0 && cue.Start < previousEnd {
			issues = append(issues, fmt.Sprintf("cue_%d: overlaps previous cue", i+1))
		}
		if strings.TrimSpace(cue.Text) == "" {
			issues = append(issues, fmt.Sprintf("cue_%d: empty text", i+1))
		}
		previousEnd = cue.End
	}
	return issues
}
