package subtitles

import "strings"

// Word is a word-level timing carried through from the transcriber.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one transcribed span of speech, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Cue is one numbered subtitle entry.
type Cue struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Compose builds one cue per segment, in order. A segment's end is moved back
// to the earliest scene change t with Start < t < End. Segments with
// Start >= End are passed through unchanged.
func Compose(segments []Segment, scenes []float64) []Cue {
	cues := make([]Cue, 0, len(segments))
	for i, seg := range segments {
		end := seg.End
		for _, t := range scenes {
			if seg.Start < t && t < end {
				end = t
				break
			}
		}
		cues = append(cues, Cue{
			Index: i + 1,
			Start: seg.Start,
			End:   end,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return cues
}

// MalformedSegments returns the indices of segments whose start is not before
// their end.
func MalformedSegments(segments []Segment) []int {
	var bad []int
	for i, seg := range segments {
		if !(seg.Start < seg.End) {
			bad = append(bad, i)
		}
	}
	return bad
}
