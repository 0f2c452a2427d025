package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scenesub/internal/config"
	"scenesub/internal/logging"
	"scenesub/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "scenesub.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without source")

	content := readFile(t, logPath)
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no source location in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with source")

	content := readFile(t, logPath)
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected source location in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "0123456789abcdef")
	ctx = services.WithStage(ctx, "scenes")
	component := logging.NewComponentLogger(logger, "subtitles")
	logging.WithContext(ctx, component).Info("scene detection complete", logging.Int("scenes", 12), logging.String("path", "my file.mp4"))

	content := readFile(t, logPath)
	for _, want := range []string{
		"INFO  subtitles: Job 01234567 (scenes) · scene detection complete",
		"scenes=12",
		`path="my file.mp4"`,
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, "job_id=") {
		t.Fatalf("job id should be folded into subject, got %q", content)
	}
}

func TestConsoleLoggerFormatsValues(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("detected",
		logging.Any("scenes", []float64{0, 2.5}),
		logging.Duration("elapsed", 1234567*time.Microsecond),
		logging.Float64("threshold", 30),
		logging.String("empty", ""),
	)

	content := buf.String()
	for _, want := range []string{
		`scenes="[0.000 2.500]"`,
		"elapsed=1.235s",
		"threshold=30",
		`empty=""`,
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestJSONLoggerUsesCompactKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRequestID(context.Background(), "req-1")
	logging.WithContext(ctx, logger).Warn("careful")

	var payload map[string]any
	if err := json.Unmarshal([]byte(readFile(t, logPath)), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload[logging.FieldRequestID] != "req-1" {
		t.Fatalf("expected request id, got %v", payload[logging.FieldRequestID])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "transcript missing", "transcript_missing", logging.String(logging.FieldImpact, "no cues"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[logging.FieldEventType] != "transcript_missing" {
		t.Fatalf("unexpected event type %v", payload[logging.FieldEventType])
	}
	if payload[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
	if payload[logging.FieldImpact] != "no cues" {
		t.Fatalf("caller impact should win, got %v", payload[logging.FieldImpact])
	}
}

func TestErrorAttrHandlesNil(t *testing.T) {
	if got := logging.Error(nil).Value.String(); got != "<nil>" {
		t.Fatalf("unexpected nil error attr %q", got)
	}
	if got := logging.Error(errors.New("boom")).Value.Any(); got == nil {
		t.Fatal("expected error value")
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		job, stage, want string
	}{
		{"", "", ""},
		{"abc", "", "Job abc"},
		{"", "serve", "serve"},
		{"0123456789", "write", "Job 01234567 (write)"},
	}
	for _, tt := range tests {
		if got := logging.FormatSubject(tt.job, tt.stage); got != tt.want {
			t.Fatalf("FormatSubject(%q, %q) = %q, want %q", tt.job, tt.stage, got, tt.want)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}
