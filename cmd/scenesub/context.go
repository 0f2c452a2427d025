package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scenesub/internal/config"
	"scenesub/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	verboseFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		verboseFlag:  verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.verboseFlag != nil && *c.verboseFlag {
		return "debug"
	}
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return strings.ToLower(level)
		}
	}
	if cfg != nil {
		return cfg.Logging.Level
	}
	return "info"
}

// commandLogger writes to the command's stderr so one-shot commands keep
// stdout for their results.
func (c *commandContext) commandLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  c.resolvedLogLevel(cfg),
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
}

// serviceLogger writes to stderr and the configured log file.
func (c *commandContext) serviceLogger(cfg *config.Config) (*slog.Logger, error) {
	clone := *cfg
	clone.Logging.Level = c.resolvedLogLevel(cfg)
	return logging.NewFromConfig(&clone)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
