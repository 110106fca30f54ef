package config

const (
	defaultConfigPath          = "~/.config/transponster/config.toml"
	projectConfigName          = "transponster.toml"
	defaultDataDir             = "~/.local/share/transponster"
	defaultLogDir              = "~/.local/share/transponster/logs"
	defaultAPIBind             = "127.0.0.1:8787"
	defaultSlackEventsEndpoint = "/slack/events"
	defaultSTTBaseURL          = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultSTTModel            = "scribe_v1"
	defaultSTTTimeoutSeconds   = 1800
	defaultSTTRequestsPerMin   = 30
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-2.5-flash"
	defaultLLMTitle            = "Transponster"
	defaultLLMTimeoutSeconds   = 120
	defaultLLMRequestsPerSec   = 2
	defaultMaxBatchItems       = 40
	defaultMaxBatchChars       = 6000
	defaultSharedDriveName     = "Transponster"
	defaultDriveRequestsPerSec = 8
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// DefaultReactions maps Slack reaction names to the language a delivered
// transcript or subtitle file should be translated into.
func DefaultReactions() map[string]string {
	return map[string]string{
		"flag-gb": "en",
		"gb":      "en",
		"uk":      "en",
		"flag-us": "en",
		"us":      "en",
		"flag-ua": "uk",
		"ua":      "uk",
		"flag-pl": "pl",
		"flag-de": "de",
		"de":      "de",
		"flag-fr": "fr",
		"fr":      "fr",
		"flag-es": "es",
		"es":      "es",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:             defaultDataDir,
			LogDir:              defaultLogDir,
			APIBind:             defaultAPIBind,
			SlackEventsEndpoint: defaultSlackEventsEndpoint,
		},
		Transcription: Transcription{
			BaseURL:           defaultSTTBaseURL,
			ModelID:           defaultSTTModel,
			Diarize:           true,
			TagAudioEvents:    true,
			TimeoutSeconds:    defaultSTTTimeoutSeconds,
			RequestsPerMinute: defaultSTTRequestsPerMin,
		},
		LLM: LLM{
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Title:             defaultLLMTitle,
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
			RetryAttempts:     1,
			RequestsPerSecond: defaultLLMRequestsPerSec,
		},
		Translation: Translation{
			MaxBatchItems: defaultMaxBatchItems,
			MaxBatchChars: defaultMaxBatchChars,
			Reactions:     DefaultReactions(),
		},
		Drive: Drive{
			SharedDriveName:   defaultSharedDriveName,
			RequestsPerSecond: defaultDriveRequestsPerSec,
		},
		Workflow: Workflow{
			BatchWindowMillis:        3000,
			DedupRetentionHours:      24,
			MaxParallelFiles:         4,
			MaxFileMB:                1000,
			DownloadTimeoutSeconds:   600,
			TranscribeTimeoutSeconds: defaultSTTTimeoutSeconds,
			UploadTimeoutSeconds:     120,
			TranslateTimeoutSeconds:  600,
			DocumentTimeoutSeconds:   60,
			SubtitleMaxChars:         40,
			SubtitleMaxSeconds:       4.0,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Startup:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
