package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scenesub/internal/language"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription.
type Service struct {
	cfg Config
	run CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.UVXBinary == "" {
		cfg.UVXBinary = UVXCommand
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = FFmpegCommand
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VADMethod == "" {
		cfg.VADMethod = VADMethodSilero
	}
	return &Service{cfg: cfg, run: runCommand}
}

// WithCommandRunner replaces command execution (for tests).
func (s *Service) WithCommandRunner(runner CommandRunner) *Service {
	if runner != nil {
		s.run = runner
	}
	return s
}

// Model returns the configured model name.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Transcribe extracts the audio of source into workDir, runs WhisperX, and
// returns the transcript segments.
func (s *Service) Transcribe(ctx context.Context, source, workDir, lang string) ([]Segment, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("transcribe: source path required")
	}
	if workDir == "" {
		return nil, fmt.Errorf("transcribe: work dir required")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcribe: ensure work dir: %w", err)
	}

	audioPath := filepath.Join(workDir, AudioFileName)
	if err := s.run(ctx, s.cfg.FFmpegBinary, extractArgs(source, audioPath)...); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	defer os.Remove(audioPath)

	if err := s.run(ctx, s.cfg.UVXBinary, s.buildArgs(audioPath, workDir, lang)...); err != nil {
		return nil, fmt.Errorf("whisperx: %w", err)
	}

	jsonPath := filepath.Join(workDir, strings.TrimSuffix(AudioFileName, filepath.Ext(AudioFileName))+".json")
	segments, err := LoadSegments(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("load whisperx output: %w", err)
	}
	return segments, nil
}

func (s *Service) buildArgs(source, outputDir, lang string) []string {
	args := make([]string, 0, 32)
	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--vad_method", s.cfg.VADMethod,
	)
	if s.cfg.VADMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if code := language.ToISO2(lang); code != "" {
		args = append(args, "--language", code)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 defaults torch.load to weights_only, which breaks pyannote checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Word is a single word with timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one transcribed segment of WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type payload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return p.Segments, nil
}
