package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and queue file configuration.
type Paths struct {
	NotesDir       string `toml:"notes_dir"`
	AttachmentsDir string `toml:"attachments_dir"`
	StagingDir     string `toml:"staging_dir"`
	LogDir         string `toml:"log_dir"`
	QueueFile      string `toml:"queue_file"`
}

// Fetch contains configuration for metadata scraping and media download.
type Fetch struct {
	Timeout        int    `toml:"timeout"`
	MaxAttempts    int    `toml:"max_attempts"`
	RetryBaseDelay int    `toml:"retry_base_delay"`
	UserAgent      string `toml:"user_agent"`
	YtdlpBinary    string `toml:"ytdlp_binary"`
}

// Transcode contains configuration for media compression.
type Transcode struct {
	Enabled      bool   `toml:"enabled"`
	MaxHeight    int    `toml:"max_height"`
	QualityLevel int    `toml:"quality_level"`
	Codec        string `toml:"codec"`
	Timeout      int    `toml:"timeout"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Gemini contains configuration for AI enhancement via the
// Google Generative Language API.
type Gemini struct {
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	QualityModel    string  `toml:"quality_model"`
	EnhanceModel    string  `toml:"enhance_model"`
	AutoEnhance     bool    `toml:"auto_enhance"`
	ConfidenceFloor float64 `toml:"confidence_floor"`
	QualityTimeout  int     `toml:"quality_timeout"`
	EnhanceTimeout  int     `toml:"enhance_timeout"`
	UploadTimeout   int     `toml:"upload_timeout"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MaxConcurrent      int `toml:"max_concurrent"`
	WatchDebounce      int `toml:"watch_debounce"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	URLDetected    bool   `toml:"url_detected"`
	NoteCreated    bool   `toml:"note_created"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reelnotes.
//
// Configuration sections by subsystem:
//   - Paths: note vault layout, staging area, and the watched queue file
//   - Fetch: scraping and yt-dlp download settings
//   - Transcode: ffmpeg compression profile
//   - Gemini: AI enhancement connection and thresholds
//   - Workflow: daemon polling intervals and timeouts
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Fetch         Fetch         `toml:"fetch"`
	Transcode     Transcode     `toml:"transcode"`
	Gemini        Gemini        `toml:"gemini"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelnotes/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/reelnotes/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelnotes.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// NotesDir and AttachmentsDir are created on a best-effort basis so the
// daemon can start when the vault is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.NotesDir) != "" {
		_ = os.MkdirAll(c.Paths.NotesDir, 0o755)
	}
	if strings.TrimSpace(c.Paths.AttachmentsDir) != "" {
		_ = os.MkdirAll(c.Paths.AttachmentsDir, 0o755)
	}
	if dir := filepath.Dir(c.Paths.QueueFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create queue file directory %q: %w", dir, err)
		}
	}
	return nil
}

// YtdlpBinary returns the yt-dlp executable name.
func (c *Config) YtdlpBinary() string {
	if strings.TrimSpace(c.Fetch.YtdlpBinary) != "" {
		return c.Fetch.YtdlpBinary
	}
	return "yt-dlp"
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Transcode.FFmpegBinary) != "" {
		return c.Transcode.FFmpegBinary
	}
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
