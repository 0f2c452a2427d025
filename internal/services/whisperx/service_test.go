package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type call struct {
	name string
	args []string
}

func stubRunner(t *testing.T, calls *[]call, transcript string) CommandRunner {
	t.Helper()
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, call{name: name, args: args})
		if name != "uvx" {
			return nil
		}
		idx := slices.Index(args, "--output_dir")
		if idx < 0 {
			t.Fatalf("missing --output_dir in %v", args)
		}
		return os.WriteFile(filepath.Join(args[idx+1], "audio.json"), []byte(transcript), 0o644)
	}
}

func TestTranscribeRunsFFmpegThenWhisperX(t *testing.T) {
	workDir := t.TempDir()
	var calls []call
	svc := NewService(Config{}).WithCommandRunner(stubRunner(t, &calls,
		`{"segments":[{"start":0.5,"end":2.0,"text":" Hello there. ","words":[{"word":"Hello","start":0.5,"end":0.9}]}]}`))

	segments, err := svc.Transcribe(context.Background(), "/videos/clip.mp4", workDir, "English")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(calls) != 2 || calls[0].name != "ffmpeg" || calls[1].name != "uvx" {
		t.Fatalf("unexpected command sequence: %+v", calls)
	}
	if !slices.Contains(calls[0].args, "/videos/clip.mp4") || !slices.Contains(calls[0].args, "16000") {
		t.Fatalf("unexpected ffmpeg args: %v", calls[0].args)
	}
	if len(segments) != 1 || segments[0].Start != 0.5 || segments[0].End != 2.0 {
		t.Fatalf("unexpected segments: %+v", segments)
	}
	if len(segments[0].Words) != 1 {
		t.Fatalf("expected words to be carried, got %+v", segments[0].Words)
	}
}

func TestTranscribePropagatesRunnerErrors(t *testing.T) {
	boom := errors.New("exit status 1")
	svc := NewService(Config{}).WithCommandRunner(func(context.Context, string, ...string) error { return boom })
	_, err := svc.Transcribe(context.Background(), "in.mp4", t.TempDir(), "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
	if !strings.Contains(err.Error(), "extract audio") {
		t.Fatalf("expected extract context, got %v", err)
	}
}

func TestTranscribeRequiresInputs(t *testing.T) {
	svc := NewService(Config{})
	if _, err := svc.Transcribe(context.Background(), "", t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty source")
	}
	if _, err := svc.Transcribe(context.Background(), "in.mp4", "", ""); err == nil {
		t.Fatal("expected error for empty work dir")
	}
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		lang    string
		want    []string
		notWant []string
	}{
		{
			name:    "cpu defaults",
			cfg:     Config{},
			lang:    "eng",
			want:    []string{"--model", "base", "--device", "cpu", "--compute_type", "int8", "--language", "en", "--vad_method", "silero"},
			notWant: []string{"--hf_token", "--extra-index-url"},
		},
		{
			name:    "cuda with pyannote",
			cfg:     Config{Model: "large-v3", CUDAEnabled: true, VADMethod: VADMethodPyannote, HFToken: "hf_abc"},
			lang:    "auto",
			want:    []string{"--model", "large-v3", "--device", "cuda", "--extra-index-url", "--hf_token", "hf_abc"},
			notWant: []string{"--language", "--compute_type"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := NewService(tt.cfg).buildArgs("audio.wav", "/out", tt.lang)
			for _, w := range tt.want {
				if !slices.Contains(args, w) {
					t.Fatalf("expected %q in %v", w, args)
				}
			}
			for _, nw := range tt.notWant {
				if slices.Contains(args, nw) {
					t.Fatalf("did not expect %q in %v", nw, args)
				}
			}
		})
	}
}

func TestLoadSegmentsRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSegments(path); err == nil {
		t.Fatal("expected parse error")
	}
}
