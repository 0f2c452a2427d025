package config

import (
	"errors"
	"fmt"
	"math"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateScenes(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind must be host:port: %w", err)
	}
	if c.Server.MaxUploadMiB <= 0 {
		return errors.New("server.max_upload_mib must be positive")
	}
	return nil
}

func (c *Config) validateScenes() error {
	threshold := c.Scenes.Threshold
	if math.IsNaN(threshold) || threshold < 0 || threshold > 100 {
		return errors.New("scenes.threshold must be between 0 and 100")
	}
	if c.Scenes.MaxWidth < 0 {
		return errors.New("scenes.max_width must be >= 0")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method must be silero or pyannote, got %q", c.Transcription.VADMethod)
	}
	if c.Transcription.VADMethod == "pyannote" && c.Transcription.HFToken == "" {
		return errors.New("transcription.hf_token must be set when transcription.vad_method is pyannote (or set HF_TOKEN)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
