package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"scenesub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose directories live under a per-test temp dir.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.SubtitleDir = filepath.Join(base, "subtitles")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAPIToken enables bearer authentication on the test server config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithThreshold overrides the scene threshold.
func WithThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scenes.Threshold = threshold
	}
}

// WithStubbedBinaries writes no-op executables for the provided names and
// prepends them to PATH. With no names, ffmpeg, ffprobe, and uvx are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "uvx"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, "exit 0\n")
		}
		prependPath(b.t, binDir)
	}
}

// WithToolScripts writes shell scripts for the named tools and points the
// config at them.
func WithToolScripts(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		for name, body := range scripts {
			path := WriteScript(b.t, binDir, name, body)
			switch name {
			case "ffmpeg":
				b.cfg.Tools.FFmpeg = path
			case "ffprobe":
				b.cfg.Tools.FFprobe = path
			case "uvx":
				b.cfg.Tools.UVX = path
			}
		}
	}
}

// WriteScript writes an executable /bin/sh script and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return target
}

func prependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
