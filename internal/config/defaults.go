package config

const (
	defaultConfigPath          = "~/.config/siksha/config.toml"
	defaultOutputDir           = "~/.local/share/siksha/generated_videos"
	defaultStateDir            = "~/.local/share/siksha/state"
	defaultLogDir              = "~/.local/share/siksha/logs"
	defaultURLPrefix           = "/static/generated_videos"
	defaultAPIBind             = "127.0.0.1:7590"
	defaultVideoWidth          = 1280
	defaultVideoHeight         = 720
	defaultFPS                 = 24
	defaultSceneCount          = 15
	defaultCaptionWrap         = 55
	defaultCaptionLineHeight   = 40
	defaultCaptionPadding      = 25
	defaultLLMBaseURL          = "http://127.0.0.1:11434/v1/chat/completions"
	defaultLLMModel            = "llama3"
	defaultLLMTitle            = "Siksha Lesson Builder"
	defaultLLMTimeoutSeconds   = 120
	defaultLLMRequestsPerMin   = 30
	defaultOllamaBinary        = "ollama"
	defaultSDWebUIURL          = "http://127.0.0.1:7860"
	defaultPollinationsURL     = "https://image.pollinations.ai"
	defaultImageSteps          = 25
	defaultImageGuidance       = 7.5
	defaultImageWidth          = 768
	defaultImageHeight         = 432
	defaultNegativePrompt      = "blurry, low quality, distorted, ugly, bad anatomy, text, watermark, signature"
	defaultImageTimeoutSeconds = 180
	defaultSpeechRate          = "+5%"
	defaultSpeechPitch         = "+2Hz"
	defaultEdgeTTSBinary       = "edge-tts"
	defaultEspeakBinary        = "espeak-ng"
	defaultEspeakRate          = 175
	defaultSpeechTimeout       = 180
	defaultWordsPerMinute      = 150
	defaultSampleRate          = 22050
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultFFmpegPreset        = "fast"
	defaultFFmpegCRF           = 23
	defaultAudioBitrate        = "192k"
	defaultMuxTimeoutSeconds   = 600
	defaultProbeTimeoutSeconds = 30
	defaultProgressBackend     = "memory"
	defaultProgressPath        = "~/.local/share/siksha/state/progress.db"
	defaultMaxConcurrentRuns   = 2
	defaultMinFreeMiB          = 512
	defaultRecentWindowSeconds = 300
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var (
	defaultImageProviders = []string{"sdwebui", "pollinations", "placeholder"}
	defaultVoices         = []string{"en-US-AriaNeural", "en-GB-SoniaNeural", "en-IN-NeerjaNeural"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			URLPrefix: defaultURLPrefix,
			APIBind:   defaultAPIBind,
		},
		Video: Video{
			Width:          defaultVideoWidth,
			Height:         defaultVideoHeight,
			FPS:            defaultFPS,
			SceneCount:     defaultSceneCount,
			CaptionWrap:    defaultCaptionWrap,
			CaptionLineGap: defaultCaptionLineHeight,
			CaptionPadding: defaultCaptionPadding,
		},
		LLM: LLM{
			Enabled:           true,
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Title:             defaultLLMTitle,
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
			RequestsPerMinute: defaultLLMRequestsPerMin,
		},
		Ollama: Ollama{
			Enabled:        true,
			Binary:         defaultOllamaBinary,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Images: Images{
			Providers:       append([]string(nil), defaultImageProviders...),
			SDWebUIURL:      defaultSDWebUIURL,
			PollinationsURL: defaultPollinationsURL,
			Steps:           defaultImageSteps,
			Guidance:        defaultImageGuidance,
			Width:           defaultImageWidth,
			Height:          defaultImageHeight,
			NegativePrompt:  defaultNegativePrompt,
			TimeoutSeconds:  defaultImageTimeoutSeconds,
		},
		Speech: Speech{
			Voices:         append([]string(nil), defaultVoices...),
			Rate:           defaultSpeechRate,
			Pitch:          defaultSpeechPitch,
			EdgeTTSBinary:  defaultEdgeTTSBinary,
			EspeakBinary:   defaultEspeakBinary,
			EspeakRate:     defaultEspeakRate,
			TimeoutSeconds: defaultSpeechTimeout,
			WordsPerMinute: defaultWordsPerMinute,
			SampleRate:     defaultSampleRate,
		},
		FFmpeg: FFmpeg{
			Binary:             defaultFFmpegBinary,
			ProbeBinary:        defaultFFprobeBinary,
			Preset:             defaultFFmpegPreset,
			CRF:                defaultFFmpegCRF,
			AudioBitrate:       defaultAudioBitrate,
			MuxTimeoutSeconds:  defaultMuxTimeoutSeconds,
			ProbeTimeoutSecond: defaultProbeTimeoutSeconds,
		},
		Progress: Progress{
			Backend: defaultProgressBackend,
			Path:    defaultProgressPath,
		},
		Workflow: Workflow{
			MaxConcurrentRuns:   defaultMaxConcurrentRuns,
			MinFreeMiB:          defaultMinFreeMiB,
			RecentWindowSeconds: defaultRecentWindowSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Completed:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
