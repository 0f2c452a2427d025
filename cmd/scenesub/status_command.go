package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scenesub/internal/language"
	"scenesub/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools, directories, and the job database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := newStatusReport(out)

			report.section("Dependencies")
			for _, dep := range preflight.CheckSystemDeps(cfg) {
				switch {
				case dep.Available:
					report.line(dep.Name, statusOK, dep.Path)
				case dep.Optional:
					report.line(dep.Name, statusWarn, fmt.Sprintf("%s (optional: %s)", dep.Detail, dep.Description))
				default:
					report.line(dep.Name, statusError, fmt.Sprintf("%s (%s)", dep.Detail, dep.Description))
				}
			}

			report.section("Directories")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				report.check(result.Name, result.Passed, statusError, result.Detail)
			}

			report.section("Service")
			store := preflight.CheckJobStore(cmd.Context(), cfg)
			report.check(store.Name, store.Passed, statusError, store.Detail)
			instance := preflight.CheckServeInstance(cfg)
			report.check(instance.Name, instance.Passed, statusInfo, instance.Detail)

			report.section("Settings")
			report.line("Config", statusInfo, configLabel(ctx))
			report.line("Scene threshold", statusInfo, fmt.Sprintf("%.1f", cfg.Scenes.Threshold))
			report.line("WhisperX model", statusInfo, cfg.Transcription.Model)
			report.line("CUDA", statusInfo, yesNo(cfg.Transcription.CUDAEnabled))
			report.line("Language", statusInfo, languageLabel(cfg.Transcription.Language))
			report.line("API auth", statusInfo, yesNo(strings.TrimSpace(cfg.Server.APIToken) != ""))

			fmt.Fprintln(out, report)
			if report.errors > 0 {
				return fmt.Errorf("%d required check(s) failed", report.errors)
			}
			return nil
		},
	}
}

func configLabel(ctx *commandContext) string {
	if ctx.configSeen {
		return ctx.configPath
	}
	return fmt.Sprintf("%s (not found; defaults)", ctx.configPath)
}

func languageLabel(code string) string {
	if strings.TrimSpace(code) == "" {
		return "auto-detect"
	}
	if name := language.DisplayName(code); name != "" {
		return fmt.Sprintf("%s (%s)", name, code)
	}
	return code
}
