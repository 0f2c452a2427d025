// Package ffprobe runs ffprobe and exposes the stream metadata the scene
// detector and subtitle pipeline need.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes an ffprobe JSON payload.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// HasAudio reports whether any audio stream exists.
func (r Result) HasAudio() bool {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return true
		}
	}
	return false
}

// FrameRate returns the video frame rate, preferring r_frame_rate over
// avg_frame_rate. It returns 0 when neither is usable.
func (r Result) FrameRate() float64 {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	if fps := parseRational(stream.RFrameRate); fps > 0 {
		return fps
	}
	return parseRational(stream.AvgFrameRate)
}

// FrameCount returns the stream's nb_frames, or 0 when unreported.
func (r Result) FrameCount() int64 {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	n, ok := parseFloat(stream.NBFrames)
	if !ok || n < 0 {
		return 0
	}
	return int64(n)
}

// DurationSeconds returns the container duration in seconds, falling back to
// the video stream duration. It returns 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	if d, ok := parseFloat(r.Format.Duration); ok && d > 0 {
		return d
	}
	if stream, ok := r.VideoStream(); ok {
		if d, ok := parseFloat(stream.Duration); ok && d > 0 {
			return d
		}
	}
	return 0
}

// EstimatedDuration returns DurationSeconds when known, otherwise
// nb_frames / fps where fps falls back to defaultFPS.
func (r Result) EstimatedDuration(defaultFPS float64) float64 {
	if d := r.DurationSeconds(); d > 0 {
		return d
	}
	frames := r.FrameCount()
	if frames == 0 {
		return 0
	}
	fps := r.FrameRate()
	if fps <= 0 {
		fps = defaultFPS
	}
	if fps <= 0 {
		return 0
	}
	return float64(frames) / fps
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size, ok := parseFloat(r.Format.Size)
	if !ok || size < 0 {
		return 0
	}
	return int64(size)
}

func parseRational(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	n, ok := parseFloat(num)
	if !ok {
		return 0
	}
	if !found {
		return math.Max(n, 0)
	}
	d, ok := parseFloat(den)
	if !ok || d == 0 {
		return 0
	}
	return math.Max(n/d, 0)
}

func parseFloat(value string) (float64, bool) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}
