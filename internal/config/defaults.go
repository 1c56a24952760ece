package config

const (
	defaultNotesDir                  = "~/notes/reels"
	defaultAttachmentsDir            = "~/notes/reels/attachments"
	defaultStagingDir                = "~/.local/share/reelnotes/staging"
	defaultLogDir                    = "~/.local/share/reelnotes/logs"
	defaultQueueFile                 = "~/notes/Reels Queue.md"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 60
	defaultFetchTimeout              = 300
	defaultFetchMaxAttempts          = 3
	defaultFetchRetryBaseDelay       = 5
	defaultFetchUserAgent            = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	defaultTranscodeMaxHeight        = 1080
	defaultTranscodeQualityLevel     = 28
	defaultTranscodeCodec            = "libx265"
	defaultTranscodeTimeout          = 600
	defaultGeminiBaseURL             = "https://generativelanguage.googleapis.com"
	defaultGeminiQualityModel        = "gemini-2.5-flash"
	defaultGeminiEnhanceModel        = "gemini-2.5-pro"
	defaultGeminiConfidenceFloor     = 0.7
	defaultGeminiQualityTimeout      = 60
	defaultGeminiEnhanceTimeout      = 300
	defaultGeminiUploadTimeout       = 300
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultWorkflowMaxConcurrent     = 2
	defaultWorkflowWatchDebounce     = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			NotesDir:       defaultNotesDir,
			AttachmentsDir: defaultAttachmentsDir,
			StagingDir:     defaultStagingDir,
			LogDir:         defaultLogDir,
			QueueFile:      defaultQueueFile,
		},
		Fetch: Fetch{
			Timeout:        defaultFetchTimeout,
			MaxAttempts:    defaultFetchMaxAttempts,
			RetryBaseDelay: defaultFetchRetryBaseDelay,
			UserAgent:      defaultFetchUserAgent,
		},
		Transcode: Transcode{
			Enabled:      true,
			MaxHeight:    defaultTranscodeMaxHeight,
			QualityLevel: defaultTranscodeQualityLevel,
			Codec:        defaultTranscodeCodec,
			Timeout:      defaultTranscodeTimeout,
		},
		Gemini: Gemini{
			BaseURL:         defaultGeminiBaseURL,
			QualityModel:    defaultGeminiQualityModel,
			EnhanceModel:    defaultGeminiEnhanceModel,
			AutoEnhance:     true,
			ConfidenceFloor: defaultGeminiConfidenceFloor,
			QualityTimeout:  defaultGeminiQualityTimeout,
			EnhanceTimeout:  defaultGeminiEnhanceTimeout,
			UploadTimeout:   defaultGeminiUploadTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			MaxConcurrent:      defaultWorkflowMaxConcurrent,
			WatchDebounce:      defaultWorkflowWatchDebounce,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			URLDetected:    true,
			NoteCreated:    true,
			Completed:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
