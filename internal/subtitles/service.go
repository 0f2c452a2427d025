package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"scenesub/internal/config"
	"scenesub/internal/fileutil"
	"scenesub/internal/logging"
	"scenesub/internal/media/ffprobe"
	"scenesub/internal/media/frames"
	"scenesub/internal/scenes"
	"scenesub/internal/services"
	"scenesub/internal/services/whisperx"
)

// Pipeline stage names used in logs and error details.
const (
	StageProbe      = "probe"
	StageScenes     = "scenes"
	StageTranscribe = "transcribe"
	StageCompose    = "compose"
	StageWrite      = "write"
)

type inspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// SourceFactory builds the frame source for a probed video.
type SourceFactory func(path string, probe ffprobe.Result) scenes.Source

// GenerateRequest describes one subtitle generation.
type GenerateRequest struct {
	SourcePath string
	// WorkDir is scratch space. When empty, a temporary directory under the
	// configured work dir is used and removed afterwards.
	WorkDir string
	// OutputDir defaults to the configured subtitle directory.
	OutputDir string
	// BaseName names the output file (BaseName.srt); defaults to the source
	// file name without its extension.
	BaseName string
	Language string
	// Threshold values <= 0 fall back to the configured threshold.
	Threshold float64
	// TranscriptPath loads an existing WhisperX JSON file instead of
	// running the transcriber.
	TranscriptPath string
}

// GenerateResult reports the generated subtitle file and summary stats.
type GenerateResult struct {
	SubtitlePath    string
	SceneCount      int
	CueCount        int
	Threshold       float64
	ScenesAvailable bool
	ScenesTruncated bool
	Issues          []string
	Duration        time.Duration
}

// Service orchestrates probing, scene detection, transcription, and SRT output.
type Service struct {
	config      *config.Config
	logger      *slog.Logger
	inspect     inspectFunc
	transcriber Transcriber
	sources     SourceFactory
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithTranscriber replaces the default WhisperX transcriber.
func WithTranscriber(t Transcriber) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.transcriber = t
		}
	}
}

// WithProbe replaces ffprobe inspection (for tests).
func WithProbe(fn func(ctx context.Context, binary, path string) (ffprobe.Result, error)) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.inspect = fn
		}
	}
}

// WithSourceFactory replaces the ffmpeg frame source (for tests).
func WithSourceFactory(fn SourceFactory) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.sources = fn
		}
	}
}

// NewService constructs a subtitle generation service.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	svc := &Service{
		config:  cfg,
		logger:  logging.NewComponentLogger(logger, "subtitles"),
		inspect: ffprobe.Inspect,
	}
	svc.sources = svc.ffmpegSource
	for _, opt := range opts {
		opt(svc)
	}
	if svc.transcriber == nil {
		svc.transcriber = NewWhisperXTranscriber(whisperx.NewService(whisperx.Config{
			Model:        cfg.Transcription.Model,
			CUDAEnabled:  cfg.Transcription.CUDAEnabled,
			VADMethod:    cfg.Transcription.VADMethod,
			HFToken:      cfg.Transcription.HFToken,
			UVXBinary:    cfg.UVXBinary(),
			FFmpegBinary: cfg.FFmpegBinary(),
		}))
	}
	return svc
}

// Model reports the transcription model recorded with jobs.
func (s *Service) Model() string {
	if m, ok := s.transcriber.(interface{ Model() string }); ok {
		return m.Model()
	}
	return s.config.Transcription.Model
}

func (s *Service) ffmpegSource(path string, probe ffprobe.Result) scenes.Source {
	video, _ := probe.VideoStream()
	return frames.FFmpegSource{
		Binary:   s.config.FFmpegBinary(),
		Path:     path,
		Width:    video.Width,
		Height:   video.Height,
		MaxWidth: s.config.Scenes.MaxWidth,
		FPS:      probe.FrameRate(),
	}
}

func (s *Service) threshold(requested float64) float64 {
	if requested > 0 {
		return requested
	}
	return s.config.Scenes.Threshold
}

// Probe inspects a video with ffprobe.
func (s *Service) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	probe, err := s.inspect(ctx, s.config.FFprobeBinary(), path)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.ErrExternalTool, StageProbe, "ffprobe", "Failed to inspect video", err)
	}
	if _, ok := probe.VideoStream(); !ok {
		return probe, services.Wrap(services.ErrValidation, StageProbe, "video stream", "Source has no video stream", nil)
	}
	return probe, nil
}

// DetectScenes probes path and runs scene detection. An unreadable video
// yields an empty list wrapped with scenes.ErrUnavailable.
func (s *Service) DetectScenes(ctx context.Context, path string, threshold float64) (scenes.Result, error) {
	probe, err := s.Probe(ctx, path)
	if err != nil {
		return scenes.Result{Timestamps: scenes.List{}}, fmt.Errorf("%w: %w", scenes.ErrUnavailable, err)
	}
	return s.detect(ctx, path, probe, s.threshold(threshold))
}

func (s *Service) detect(ctx context.Context, path string, probe ffprobe.Result, threshold float64) (scenes.Result, error) {
	opts := scenes.Options{Threshold: threshold, MaxWidth: s.config.Scenes.MaxWidth}
	result, err := opts.DetectSource(ctx, s.sources(path, probe))
	s.logger.Debug("scene detection finished",
		logging.Float64("threshold", threshold),
		logging.Any("scenes", []float64(result.Timestamps)),
	)
	return result, err
}

// Generate produces an SRT file for the provided source.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	start := time.Now()
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return GenerateResult{}, services.Wrap(services.ErrValidation, "subtitles", "generate", "Source path is required", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return GenerateResult{}, services.Wrap(services.ErrNotFound, "subtitles", "generate", "Source video not found", err)
	}

	threshold := s.threshold(req.Threshold)
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = s.config.Transcription.Language
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = s.config.Paths.SubtitleDir
	}
	baseName := strings.TrimSpace(req.BaseName)
	if baseName == "" {
		baseName = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}

	workDir, cleanup, err := s.prepareWorkDir(req.WorkDir)
	if err != nil {
		return GenerateResult{}, err
	}
	defer cleanup()

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("subtitle generation started",
		logging.String("source_file", source),
		logging.Float64("threshold", threshold),
		logging.String("language", language),
	)

	probe, probeErr := s.Probe(services.WithStage(ctx, StageProbe), source)
	if probeErr != nil {
		logging.WarnWithContext(logger, "video probe failed; scene changes unavailable", "probe_failed",
			logging.Error(probeErr),
			logging.String(logging.FieldImpact, "cue end times will not be clipped at scene changes"),
			logging.String(logging.FieldErrorHint, "check the ffprobe binary and that the file is a playable video"),
		)
	}

	transcriber := s.transcriber
	if path := strings.TrimSpace(req.TranscriptPath); path != "" {
		transcriber = JSONTranscript{Path: path}
	}

	var (
		sceneResult = scenes.Result{Timestamps: scenes.List{}}
		segments    []Segment
	)
	g, gctx := errgroup.WithContext(ctx)
	if probeErr == nil {
		g.Go(func() error {
			stageCtx := services.WithStage(gctx, StageScenes)
			res, err := s.detect(stageCtx, source, probe, threshold)
			sceneResult = res
			switch {
			case err == nil:
			case errors.Is(err, scenes.ErrUnavailable):
				logging.WarnWithContext(logging.WithContext(stageCtx, s.logger), "scene detection unavailable", "scenes_unavailable",
					logging.Error(err),
					logging.String(logging.FieldImpact, "cue end times will not be clipped at scene changes"),
				)
				return nil
			default:
				return services.Wrap(services.ErrTransient, StageScenes, "detect", "Scene detection interrupted", err)
			}
			if res.Truncated {
				logging.WarnWithContext(logging.WithContext(stageCtx, s.logger), "video decoding stopped early", "scenes_truncated",
					logging.Error(res.DecodeErr),
					logging.Int("frames", res.Frames),
					logging.String(logging.FieldImpact, "scene changes after the failure point are missing"),
				)
			}
			return nil
		})
	}
	g.Go(func() error {
		stageCtx := services.WithStage(gctx, StageTranscribe)
		segs, err := transcriber.Transcribe(stageCtx, source, workDir, language)
		if err != nil {
			if ctxErr := gctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			return services.Wrap(services.ErrExternalTool, StageTranscribe, "transcribe", "Transcription failed", err)
		}
		segments = segs
		return nil
	})
	if err := g.Wait(); err != nil {
		return GenerateResult{}, err
	}

	composeLogger := logging.WithContext(services.WithStage(ctx, StageCompose), s.logger)
	if bad := MalformedSegments(segments); len(bad) > 0 {
		logging.WarnWithContext(composeLogger, "transcript contains segments that end before they start", "malformed_segments",
			logging.Int("count", len(bad)),
			logging.Any("indices", bad),
			logging.String(logging.FieldImpact, "those cues are written with their original timings"),
		)
	}
	cues := Compose(segments, sceneResult.Timestamps)
	composeLogger.Debug("cues composed",
		logging.Int("segments", len(segments)),
		logging.Int("scene_changes", len(sceneResult.Timestamps)),
	)

	outputPath := filepath.Join(outputDir, baseName+".srt")
	if err := writeFileAtomic(outputPath, cues); err != nil {
		return GenerateResult{}, services.Wrap(services.ErrTransient, StageWrite, "write srt", "Failed to write subtitle file", err)
	}

	var videoSeconds float64
	if probeErr == nil {
		videoSeconds = probe.EstimatedDuration(scenes.DefaultFPS)
	}
	issues := ValidateSRT(cues, videoSeconds)
	if len(issues) > 0 {
		logging.WarnWithContext(logging.WithContext(services.WithStage(ctx, StageWrite), s.logger), "subtitle validation reported issues", "srt_validation",
			logging.String("issues", strings.Join(issues, "; ")),
			logging.String("subtitle_file", outputPath),
			logging.String(logging.FieldImpact, "subtitles were written but may display incorrectly"),
		)
	}

	result := GenerateResult{
		SubtitlePath:    outputPath,
		SceneCount:      len(sceneResult.Timestamps),
		CueCount:        len(cues),
		Threshold:       threshold,
		ScenesAvailable: sceneResult.Available(),
		ScenesTruncated: sceneResult.Truncated,
		Issues:          issues,
		Duration:        time.Since(start),
	}
	logger.Info("subtitle generation completed",
		logging.String("subtitle_file", outputPath),
		logging.Int("cues", result.CueCount),
		logging.Int("scene_changes", result.SceneCount),
		logging.Bool("scenes_available", result.ScenesAvailable),
		logging.Duration("elapsed", result.Duration),
	)
	return result, nil
}

func (s *Service) prepareWorkDir(requested string) (string, func(), error) {
	if dir := strings.TrimSpace(requested); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, services.Wrap(services.ErrConfiguration, "subtitles", "work dir", "Failed to create work directory", err)
		}
		return dir, func() {}, nil
	}
	parent := s.config.Paths.WorkDir
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", nil, services.Wrap(services.ErrConfiguration, "subtitles", "work dir", "Failed to create work directory", err)
	}
	dir, err := os.MkdirTemp(parent, "job-*")
	if err != nil {
		return "", nil, services.Wrap(services.ErrConfiguration, "subtitles", "work dir", "Failed to create work directory", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func writeFileAtomic(path string, cues []Cue) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return WriteSRT(w, cues)
	})
}
