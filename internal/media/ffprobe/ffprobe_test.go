package ffprobe

import (
	"math"
	"testing"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "nb_frames": "300", "duration": "10.010000"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"filename": "clip.mp4", "nb_streams": 2, "duration": "10.026667", "size": "2048", "format_name": "mov,mp4"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1920 || video.Height != 1080 {
		t.Fatalf("unexpected video stream: %+v", video)
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream")
	}
	if fps := result.FrameRate(); math.Abs(fps-29.97002997) > 1e-6 {
		t.Fatalf("unexpected frame rate %v", fps)
	}
	if result.FrameCount() != 300 {
		t.Fatalf("unexpected frame count %d", result.FrameCount())
	}
	if result.DurationSeconds() != 10.026667 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 2048 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFrameRateFallbacks(t *testing.T) {
	tests := []struct {
		name string
		r    string
		avg  string
		want float64
	}{
		{"r frame rate", "25/1", "0/0", 25},
		{"avg when r is zero", "0/0", "24000/1001", 24000.0 / 1001.0},
		{"plain number", "50", "", 50},
		{"unknown", "0/0", "0/0", 0},
		{"garbage", "x/y", "N/A", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Result{Streams: []Stream{{CodecType: "video", RFrameRate: tt.r, AvgFrameRate: tt.avg}}}
			if got := result.FrameRate(); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("FrameRate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimatedDuration(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   float64
	}{
		{
			name:   "container duration wins",
			result: Result{Format: Format{Duration: "12.5"}},
			want:   12.5,
		},
		{
			name:   "stream duration",
			result: Result{Format: Format{Duration: "N/A"}, Streams: []Stream{{CodecType: "video", Duration: "8"}}},
			want:   8,
		},
		{
			name:   "frames over fps",
			result: Result{Streams: []Stream{{CodecType: "video", NBFrames: "120", RFrameRate: "30/1"}}},
			want:   4,
		},
		{
			name:   "frames over default fps",
			result: Result{Streams: []Stream{{CodecType: "video", NBFrames: "100", RFrameRate: "0/0"}}},
			want:   4,
		},
		{
			name:   "nothing known",
			result: Result{},
			want:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.EstimatedDuration(25); got != tt.want {
				t.Fatalf("EstimatedDuration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvalidNumbersReportZero(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if _, ok := result.VideoStream(); ok {
		t.Fatal("expected no video stream")
	}
}
