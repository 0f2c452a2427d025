package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the Whisper model name ("base", "small", "large-v3", ...).
	Model       string
	CUDAEnabled bool
	// VADMethod selects voice activity detection: "silero" or "pyannote".
	VADMethod string
	// HFToken authorizes the pyannote VAD model download.
	HFToken      string
	UVXBinary    string
	FFmpegBinary string
}

const (
	DefaultModel      = "base"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "8"
	ChunkSize         = "20"
	BeamSize          = "5"
	SegmentResolution = "sentence"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "int8"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

const (
	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)

// AudioFileName is the extracted audio written into the work directory.
const AudioFileName = "audio.wav"
