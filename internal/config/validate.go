package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.NotesDir) == "" {
		return errors.New("paths.notes_dir must be set")
	}
	if strings.TrimSpace(c.Paths.QueueFile) == "" {
		return errors.New("paths.queue_file must be set")
	}
	if strings.HasSuffix(c.Paths.QueueFile, "/") {
		return errors.New("paths.queue_file must be a file, not a directory")
	}
	return nil
}

func (c *Config) validateFetch() error {
	return ensurePositiveMap(map[string]int{
		"fetch.timeout":          c.Fetch.Timeout,
		"fetch.max_attempts":     c.Fetch.MaxAttempts,
		"fetch.retry_base_delay": c.Fetch.RetryBaseDelay,
	})
}

func (c *Config) validateTranscode() error {
	if !c.Transcode.Enabled {
		return nil
	}
	if err := ensurePositiveMap(map[string]int{
		"transcode.max_height": c.Transcode.MaxHeight,
		"transcode.timeout":    c.Transcode.Timeout,
	}); err != nil {
		return err
	}
	if c.Transcode.QualityLevel < 0 || c.Transcode.QualityLevel > 51 {
		return errors.New("transcode.quality_level must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.ConfidenceFloor < 0 || c.Gemini.ConfidenceFloor > 1 {
		return errors.New("gemini.confidence_floor must be between 0 and 1")
	}
	if c.Gemini.AutoEnhance && strings.TrimSpace(c.Gemini.BaseURL) == "" {
		return errors.New("gemini.base_url must be set when gemini.auto_enhance is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.max_concurrent":       c.Workflow.MaxConcurrent,
		"workflow.watch_debounce":       c.Workflow.WatchDebounce,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
