package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteSRT writes cues in SubRip format. Cues are numbered from 1 in slice
// order regardless of their Index field.
func WriteSRT(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for i, cue := range cues {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text); err != nil {
			return fmt.Errorf("write cue %d: %w", i+1, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush srt: %w", err)
	}
	return nil
}

// RenderSRT returns the SubRip text for cues.
func RenderSRT(cues []Cue) string {
	var b strings.Builder
	_ = WriteSRT(&b, cues)
	return b.String()
}

// ParseSRT reads SubRip cues. It accepts CRLF line endings, a leading BOM,
// and cue settings after the end timestamp.
func ParseSRT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		cues    []Cue
		current *Cue
		text    []string
		lineNo  int
		state   = "index"
	)
	flush := func() {
		if current != nil {
			current.Text = strings.Join(text, "\n")
			cues = append(cues, *current)
		}
		current = nil
		text = nil
		state = "index"
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		switch state {
		case "index":
			if strings.TrimSpace(line) == "" {
				continue
			}
			index, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid cue index %q", lineNo, line)
			}
			current = &Cue{Index: index}
			state = "timing"
		case "timing":
			start, end, err := parseTiming(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.Start, current.End = start, end
			state = "text"
		case "text":
			if strings.TrimSpace(line) == "" {
				flush()
				continue
			}
			text = append(text, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	if state == "timing" {
		return nil, fmt.Errorf("line %d: cue %d has no timing line", lineNo, current.Index)
	}
	flush()
	return cues, nil
}

func parseTiming(line string) (float64, float64, error) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := ParseTimestamp(left)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	end, err := ParseTimestamp(fields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// videoEndTolerance allows cues to end slightly after the probed duration,
// which is often rounded by the container.
const videoEndTolerance = 0.5

// ValidateSRT checks cues for structural problems and returns one issue per
// problem found; an empty result means the cues passed. videoSeconds <= 0
// skips the duration check.
func ValidateSRT(cues []Cue, videoSeconds float64) []string {
	if len(cues) == 0 {
		return []string{"empty_subtitle_file"}
	}
	var issues []string
	for i, cue := range cues {
		if cue.Index != i+1 {
			issues = append(issues, fmt.Sprintf("non_sequential_index: position %d has index %d", i+1, cue.Index))
		}
		if cue.End <= cue.Start {
			issues = append(issues, fmt.Sprintf("invalid_timing: cue %d ends at %s before it starts at %s",
				i+1, FormatTimestamp(cue.End), FormatTimestamp(cue.Start)))
		}
		if videoSeconds > 0 && cue.End > videoSeconds+videoEndTolerance {
			issues = append(issues, fmt.Sprintf("cue_past_end: cue %d ends at %s, video is %s",
				i+1, FormatTimestamp(cue.End), FormatTimestamp(videoSeconds)))
		}
	}
	return issues
}
