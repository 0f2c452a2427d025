package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scenesub/internal/logging"
	"scenesub/internal/media/frames"
	"scenesub/internal/scenes"
	"scenesub/internal/subtitles"
)

type sceneReport struct {
	Source    string      `json:"source" yaml:"source"`
	Threshold float64     `json:"threshold" yaml:"threshold"`
	Available bool        `json:"available" yaml:"available"`
	Truncated bool        `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Frames    int         `json:"frames" yaml:"frames"`
	FPS       float64     `json:"fps,omitempty" yaml:"fps,omitempty"`
	Scenes    scenes.List `json:"scenes" yaml:"scenes"`
}

func newScenesCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	var format string
	var framesDir string
	var fps float64

	cmd := &cobra.Command{
		Use:   "scenes [video]",
		Short: "Print the scene-change timestamps detected in a video",
		Args: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(framesDir) != "" {
				if len(args) != 0 {
					return errors.New("pass either a video path or --frames-dir, not both")
				}
				return nil
			}
			if len(args) != 1 {
				return errors.New("provide the path to the video file. Example: scenesub scenes /path/to/video.mp4")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cmd, cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if threshold <= 0 {
				threshold = cfg.Scenes.Threshold
			}

			var (
				source string
				result scenes.Result
				detErr error
			)
			if dir := strings.TrimSpace(framesDir); dir != "" {
				source = dir
				opts := scenes.Options{Threshold: threshold, MaxWidth: cfg.Scenes.MaxWidth}
				result, detErr = opts.DetectSource(cmd.Context(), frames.ImageDirSource{Dir: dir, FPS: fps})
			} else {
				source, err = resolveSource(args[0])
				if err != nil {
					return err
				}
				service := subtitles.NewService(cfg, logger)
				result, detErr = service.DetectScenes(cmd.Context(), source, threshold)
			}
			if detErr != nil {
				if !errors.Is(detErr, scenes.ErrUnavailable) {
					return detErr
				}
				logging.WarnWithContext(logger, "scene detection unavailable", "scenes_unavailable",
					logging.Error(detErr),
					logging.String(logging.FieldImpact, "no scene changes reported"),
					logging.String(logging.FieldErrorHint, "verify the input is a readable video or frame directory"),
				)
			}
			if result.Truncated {
				logging.WarnWithContext(logger, "frame decoding stopped early", "scenes_truncated",
					logging.Error(result.DecodeErr),
					logging.String(logging.FieldImpact, "later scene changes are missing"),
					logging.String(logging.FieldErrorHint, "re-encode or repair the source video"),
				)
			}

			report := sceneReport{
				Source:    source,
				Threshold: threshold,
				Available: detErr == nil,
				Truncated: result.Truncated,
				Frames:    result.Frames,
				FPS:       result.FPS,
				Scenes:    result.Timestamps,
			}
			if report.Scenes == nil {
				report.Scenes = scenes.List{}
			}

			switch outFormat {
			case formatJSON:
				return writeJSON(cmd, report)
			case formatYAML:
				return writeYAML(cmd, report)
			}
			rows := make([][]string, 0, len(report.Scenes))
			for i, ts := range report.Scenes {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					strconv.FormatFloat(ts, 'f', 3, 64),
					subtitles.FormatTimestamp(ts),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]column{{title: "#", numeric: true}, {title: "Seconds", numeric: true}, {title: "Timestamp"}}, rows))
			fmt.Fprintf(out, "%d scene starts across %d frames (threshold %.1f)\n", len(report.Scenes), report.Frames, report.Threshold)
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Scene sensitivity 0-100 (defaults to scenes.threshold)")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json, or yaml")
	cmd.Flags().StringVar(&framesDir, "frames-dir", "", "Analyze a directory of PNG/JPEG stills instead of a video")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Frame rate for --frames-dir (defaults to 25)")
	return cmd
}
