package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	UploadDir   string `toml:"upload_dir"`
	SubtitleDir string `toml:"subtitle_dir"`
	WorkDir     string `toml:"work_dir"`
	LogDir      string `toml:"log_dir"`
}

// Server contains configuration for the HTTP upload service.
type Server struct {
	Bind         string `toml:"bind"`
	APIToken     string `toml:"api_token"`
	MaxUploadMiB int    `toml:"max_upload_mib"`
	// ReuseResults returns a stored subtitle when the same video content was
	// already processed with identical settings.
	ReuseResults bool `toml:"reuse_results"`
}

// Scenes contains configuration for histogram scene-change detection.
type Scenes struct {
	// Threshold is the sensitivity as a percentage (0-100). A frame whose
	// Bhattacharyya distance to its predecessor exceeds Threshold/100 is a cut.
	Threshold float64 `toml:"threshold"`
	// MaxWidth downscales frames wider than this before analysis. Zero keeps
	// the native decode size.
	MaxWidth int `toml:"max_width"`
}

// Transcription contains WhisperX configuration.
type Transcription struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	Language    string `toml:"language"`
}

// Tools contains external binary locations.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	UVX     string `toml:"uvx"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scenesub.
//
// Configuration sections by subsystem:
//   - Paths: data, upload, subtitle, work, and log directories
//   - Server: HTTP bind address, bearer token, upload limits
//   - Scenes: scene-change detection sensitivity
//   - Transcription: WhisperX model and device settings
//   - Tools: ffmpeg/ffprobe/uvx binaries
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Scenes        Scenes        `toml:"scenes"`
	Transcription Transcription `toml:"transcription"`
	Tools         Tools         `toml:"tools"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scenesub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI and service write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadDir, c.Paths.SubtitleDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the job database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the lock file guarding a single serving instance.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scenesub.lock")
}

// FFmpegBinary returns the configured ffmpeg binary name.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFmpeg) == "" {
		return defaultFFmpegBinary
	}
	return strings.TrimSpace(c.Tools.FFmpeg)
}

// FFprobeBinary returns the configured ffprobe binary name.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFprobe) == "" {
		return defaultFFprobeBinary
	}
	return strings.TrimSpace(c.Tools.FFprobe)
}

// UVXBinary returns the configured uvx binary used to launch WhisperX.
func (c *Config) UVXBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.UVX) == "" {
		return defaultUVXBinary
	}
	return strings.TrimSpace(c.Tools.UVX)
}

// MaxUploadBytes converts the upload limit to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMiB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
