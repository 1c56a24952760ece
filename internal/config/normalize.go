package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFetch()
	c.normalizeTranscode()
	c.normalizeGemini()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.NotesDir, err = expandPath(c.Paths.NotesDir); err != nil {
		return fmt.Errorf("paths.notes_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AttachmentsDir) == "" {
		c.Paths.AttachmentsDir = defaultAttachmentsDir
	}
	if c.Paths.AttachmentsDir, err = expandPath(c.Paths.AttachmentsDir); err != nil {
		return fmt.Errorf("paths.attachments_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.QueueFile, err = expandPath(c.Paths.QueueFile); err != nil {
		return fmt.Errorf("paths.queue_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeFetch() {
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = defaultFetchTimeout
	}
	if c.Fetch.MaxAttempts <= 0 {
		c.Fetch.MaxAttempts = defaultFetchMaxAttempts
	}
	if c.Fetch.RetryBaseDelay <= 0 {
		c.Fetch.RetryBaseDelay = defaultFetchRetryBaseDelay
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
	c.Fetch.YtdlpBinary = strings.TrimSpace(c.Fetch.YtdlpBinary)
}

func (c *Config) normalizeTranscode() {
	if c.Transcode.MaxHeight <= 0 {
		c.Transcode.MaxHeight = defaultTranscodeMaxHeight
	}
	if c.Transcode.QualityLevel <= 0 {
		c.Transcode.QualityLevel = defaultTranscodeQualityLevel
	}
	c.Transcode.Codec = strings.TrimSpace(c.Transcode.Codec)
	if c.Transcode.Codec == "" {
		c.Transcode.Codec = defaultTranscodeCodec
	}
	if c.Transcode.Timeout <= 0 {
		c.Transcode.Timeout = defaultTranscodeTimeout
	}
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		}
	}
	c.Gemini.BaseURL = strings.TrimSpace(c.Gemini.BaseURL)
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.BaseURL = strings.TrimRight(c.Gemini.BaseURL, "/")
	c.Gemini.QualityModel = strings.TrimSpace(c.Gemini.QualityModel)
	if c.Gemini.QualityModel == "" {
		c.Gemini.QualityModel = defaultGeminiQualityModel
	}
	c.Gemini.EnhanceModel = strings.TrimSpace(c.Gemini.EnhanceModel)
	if c.Gemini.EnhanceModel == "" {
		c.Gemini.EnhanceModel = defaultGeminiEnhanceModel
	}
	if c.Gemini.ConfidenceFloor <= 0 {
		c.Gemini.ConfidenceFloor = defaultGeminiConfidenceFloor
	}
	if c.Gemini.QualityTimeout <= 0 {
		c.Gemini.QualityTimeout = defaultGeminiQualityTimeout
	}
	if c.Gemini.EnhanceTimeout <= 0 {
		c.Gemini.EnhanceTimeout = defaultGeminiEnhanceTimeout
	}
	if c.Gemini.UploadTimeout <= 0 {
		c.Gemini.UploadTimeout = defaultGeminiUploadTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxConcurrent <= 0 {
		c.Workflow.MaxConcurrent = defaultWorkflowMaxConcurrent
	}
	if c.Workflow.WatchDebounce <= 0 {
		c.Workflow.WatchDebounce = defaultWorkflowWatchDebounce
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
