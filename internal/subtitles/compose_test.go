package subtitles

import (
	"slices"
	"testing"
)

func TestComposeClipsAtFirstSceneInsideSegment(t *testing.T) {
	segments := []Segment{{Start: 1, End: 5, Text: "  hello  "}}
	cues := Compose(segments, []float64{0, 2, 4})
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	want := Cue{Index: 1, Start: 1, End: 2, Text: "hello"}
	if cues[0] != want {
		t.Fatalf("got %+v, want %+v", cues[0], want)
	}
}

func TestComposeBoundariesAreExclusive(t *testing.T) {
	tests := []struct {
		name   string
		seg    Segment
		scenes []float64
		want   float64
	}{
		{"scene at start", Segment{Start: 2, End: 5}, []float64{0, 2}, 5},
		{"scene at end", Segment{Start: 2, End: 5}, []float64{0, 5}, 5},
		{"scene after", Segment{Start: 2, End: 5}, []float64{0, 7}, 5},
		{"scene inside", Segment{Start: 2, End: 5}, []float64{0, 3.5}, 3.5},
		{"no scenes", Segment{Start: 2, End: 5}, nil, 5},
		{"only start", Segment{Start: 0.5, End: 1.5}, []float64{0}, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cues := Compose([]Segment{tt.seg}, tt.scenes)
			if cues[0].End != tt.want {
				t.Fatalf("End = %v, want %v", cues[0].End, tt.want)
			}
		})
	}
}

func TestComposeInvariants(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 3, Text: "a"},
		{Start: 3, End: 9, Text: "b"},
		{Start: 9.5, End: 12, Text: "c"},
		{Start: 12, End: 12, Text: "empty span"},
		{Start: 15, End: 14, Text: "backwards"},
	}
	sceneList := []float64{0, 1.2, 4, 6, 10, 14.5}
	cues := Compose(segments, sceneList)

	if len(cues) != len(segments) {
		t.Fatalf("cue count %d != segment count %d", len(cues), len(segments))
	}
	for i, cue := range cues {
		if cue.Index != i+1 {
			t.Fatalf("cue %d has index %d", i, cue.Index)
		}
		if cue.Start != segments[i].Start {
			t.Fatalf("cue %d start changed", i)
		}
		if cue.End > segments[i].End {
			t.Fatalf("cue %d end %v exceeds segment end %v", i, cue.End, segments[i].End)
		}
		if cue.Text != segments[i].Text {
			t.Fatalf("cue %d text reordered: %q", i, cue.Text)
		}
	}
	wantEnds := []float64{1.2, 4, 10, 12, 14}
	for i, want := range wantEnds {
		if cues[i].End != want {
			t.Fatalf("cue %d end = %v, want %v", i, cues[i].End, want)
		}
	}
}

func TestComposeWithoutScenesIsPassThrough(t *testing.T) {
	segments := []Segment{{Start: 0.25, End: 1.75, Text: "one"}, {Start: 2, End: 4, Text: "two"}}
	for _, sceneList := range [][]float64{nil, {}} {
		cues := Compose(segments, sceneList)
		for i, cue := range cues {
			if cue.Start != segments[i].Start || cue.End != segments[i].End {
				t.Fatalf("expected pass-through, got %+v", cue)
			}
		}
	}
}

func TestComposeEmptyTranscript(t *testing.T) {
	cues := Compose(nil, []float64{0, 1})
	if cues == nil || len(cues) != 0 {
		t.Fatalf("expected empty non-nil cue list, got %#v", cues)
	}
}

func TestMalformedSegments(t *testing.T) {
	segments := []Segment{{Start: 0, End: 1}, {Start: 2, End: 2}, {Start: 3, End: 4}, {Start: 6, End: 5}}
	if got := MalformedSegments(segments); !slices.Equal(got, []int{1, 3}) {
		t.Fatalf("MalformedSegments = %v", got)
	}
	if got := MalformedSegments(segments[:1]); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
