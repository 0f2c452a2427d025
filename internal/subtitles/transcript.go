package subtitles

import (
	"context"
	"fmt"
	"strings"

	"scenesub/internal/services/whisperx"
)

// Transcriber produces transcript segments for a video. workDir is scratch
// space owned by the caller for the duration of the call.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath, workDir, language string) ([]Segment, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, videoPath, workDir, language string) ([]Segment, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, videoPath, workDir, language string) ([]Segment, error) {
	return f(ctx, videoPath, workDir, language)
}

// WhisperXTranscriber runs WhisperX for each video.
type WhisperXTranscriber struct {
	svc *whisperx.Service
}

// NewWhisperXTranscriber wraps a WhisperX service.
func NewWhisperXTranscriber(svc *whisperx.Service) *WhisperXTranscriber {
	return &WhisperXTranscriber{svc: svc}
}

// Model reports the WhisperX model in use.
func (t *WhisperXTranscriber) Model() string {
	return t.svc.Model()
}

func (t *WhisperXTranscriber) Transcribe(ctx context.Context, videoPath, workDir, language string) ([]Segment, error) {
	raw, err := t.svc.Transcribe(ctx, videoPath, workDir, language)
	if err != nil {
		return nil, err
	}
	return fromWhisperX(raw), nil
}

// JSONTranscript loads an existing WhisperX JSON file instead of transcribing.
type JSONTranscript struct {
	Path string
}

func (j JSONTranscript) Transcribe(context.Context, string, string, string) ([]Segment, error) {
	if strings.TrimSpace(j.Path) == "" {
		return nil, fmt.Errorf("transcript path required")
	}
	raw, err := whisperx.LoadSegments(j.Path)
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", j.Path, err)
	}
	return fromWhisperX(raw), nil
}

func fromWhisperX(raw []whisperx.Segment) []Segment {
	segments := make([]Segment, 0, len(raw))
	for _, seg := range raw {
		out := Segment{Start: seg.Start, End: seg.End, Text: seg.Text}
		if len(seg.Words) > 0 {
			out.Words = make([]Word, len(seg.Words))
			for i, w := range seg.Words {
				out.Words[i] = Word{Word: w.Word, Start: w.Start, End: w.End}
			}
		}
		segments = append(segments, out)
	}
	return segments
}
