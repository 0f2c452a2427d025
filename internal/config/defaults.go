package config

const (
	defaultConfigPath      = "~/.config/scenesub/config.toml"
	defaultDataDir         = "~/.local/share/scenesub"
	defaultUploadDir       = "~/.local/share/scenesub/uploads"
	defaultSubtitleDir     = "~/.local/share/scenesub/subtitles"
	defaultWorkDir         = "~/.local/share/scenesub/work"
	defaultLogDir          = "~/.local/share/scenesub/logs"
	defaultServerBind      = "127.0.0.1:5000"
	defaultMaxUploadMiB    = 2048
	defaultSceneThreshold  = 30.0
	defaultWhisperXModel   = "base"
	defaultVADMethod       = "silero"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultUVXBinary       = "uvx"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	apiTokenEnv            = "SCENESUB_API_TOKEN"
	huggingFaceTokenEnv    = "HF_TOKEN"
	huggingFaceHubTokenEnv = "HUGGING_FACE_HUB_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			UploadDir:   defaultUploadDir,
			SubtitleDir: defaultSubtitleDir,
			WorkDir:     defaultWorkDir,
			LogDir:      defaultLogDir,
		},
		Server: Server{
			Bind:         defaultServerBind,
			MaxUploadMiB: defaultMaxUploadMiB,
			ReuseResults: true,
		},
		Scenes: Scenes{
			Threshold: defaultSceneThreshold,
		},
		Transcription: Transcription{
			Model:     defaultWhisperXModel,
			VADMethod: defaultVADMethod,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
			UVX:     defaultUVXBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
