package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scenesub/internal/subtitles"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var workDir string
	var threshold float64
	var language string
	var transcript string
	var model string

	cmd := &cobra.Command{
		Use:   "generate <video>",
		Short: "Generate scene-aware SRT subtitles for a video file",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("provide the path to the video file. Example: scenesub generate /path/to/video.mp4\nRun scenesub generate --help for more details")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := resolveSource(args[0])
			if err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if m := strings.TrimSpace(model); m != "" {
				clone := *cfg
				clone.Transcription.Model = m
				cfg = &clone
			}

			outDir := strings.TrimSpace(outputDir)
			if outDir == "" {
				outDir = filepath.Dir(source)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("ensure output directory: %w", err)
			}

			logger, err := ctx.commandLogger(cmd, cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			service := subtitles.NewService(cfg, logger)

			result, err := service.Generate(cmd.Context(), subtitles.GenerateRequest{
				SourcePath:     source,
				WorkDir:        strings.TrimSpace(workDir),
				OutputDir:      outDir,
				Language:       language,
				Threshold:      threshold,
				TranscriptPath: strings.TrimSpace(transcript),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Subtitle file: %s\n", result.SubtitlePath)
			fmt.Fprintf(out, "Cues: %d\n", result.CueCount)
			if result.ScenesAvailable {
				fmt.Fprintf(out, "Scene changes: %d (threshold %.1f)\n", result.SceneCount, result.Threshold)
			} else {
				fmt.Fprintln(out, "Scene changes: unavailable (cue timing left unadjusted)")
			}
			if result.ScenesTruncated {
				fmt.Fprintln(out, "Warning: frame decoding stopped early; later scene changes are missing")
			}
			for _, issue := range result.Issues {
				fmt.Fprintf(out, "Validation: %s\n", issue)
			}
			fmt.Fprintf(out, "Elapsed: %s\n", result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the SRT file (defaults to the video's directory)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Scratch directory for audio extraction (defaults to a temporary directory)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Scene sensitivity 0-100 (defaults to scenes.threshold)")
	cmd.Flags().StringVar(&language, "language", "", "Spoken language hint for transcription")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Use an existing WhisperX JSON transcript instead of transcribing")
	cmd.Flags().StringVar(&model, "model", "", "Override the WhisperX model")
	return cmd
}

func resolveSource(arg string) (string, error) {
	source := strings.TrimSpace(arg)
	if source == "" {
		return "", fmt.Errorf("source file path is required")
	}
	source, _ = filepath.Abs(source)
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("source file %q not found", source)
		}
		return "", fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source path %q is a directory", source)
	}
	return source, nil
}
