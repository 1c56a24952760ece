// Package ytdlp wraps the yt-dlp command line downloader.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"reelnotes/internal/services"
)

var commandContext = exec.CommandContext

const stageName = "fetch"

// mediaExtensions are the container formats yt-dlp is expected to produce.
var mediaExtensions = []string{".mp4", ".webm", ".mkv", ".mov"}

// Client defines media download behaviour.
type Client interface {
	Download(ctx context.Context, url, destDir string) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds a single download attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the yt-dlp command-line downloader.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "yt-dlp", timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Download fetches the media behind url into destDir and returns the path
// of the downloaded file. destDir should be empty; the newest media file
// found there after the run is taken as the result.
func (c *CLI) Download(ctx context.Context, url, destDir string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "download", "url required", nil)
	}
	if strings.TrimSpace(destDir) == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "download", "destination directory required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, stageName, "download", "create destination", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	outputTemplate := filepath.Join(destDir, "reel.%(ext)s")
	args := []string{"--no-warnings", "--no-playlist", "--no-progress", "-o", outputTemplate, url}

	cmd := commandContext(runCtx, c.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, stageName, "download", fmt.Sprintf("yt-dlp exceeded %s", c.timeout), runCtx.Err())
		}
		return "", classifyFailure(stderr.String(), err)
	}

	path, err := findDownloaded(destDir)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "download", "locate downloaded file", err)
	}
	return path, nil
}

// classifyFailure inspects yt-dlp stderr to separate permanently dead URLs
// from transient network and extraction trouble.
func classifyFailure(stderr string, err error) error {
	lowered := strings.ToLower(stderr)
	detail := firstErrorLine(stderr)

	permanent := []string{
		"unsupported url",
		"is not a valid url",
		"video unavailable",
		"this post is unavailable",
		"page does not exist",
		"404",
		"private",
		"removed",
	}
	for _, marker := range permanent {
		if strings.Contains(lowered, marker) {
			return services.Wrap(services.ErrValidation, stageName, "download", detail, err)
		}
	}

	transient := []string{
		"timed out",
		"timeout",
		"temporary failure",
		"connection reset",
		"connection refused",
		"rate-limit",
		"429",
		"503",
		"unable to download webpage",
	}
	for _, marker := range transient {
		if strings.Contains(lowered, marker) {
			return services.Wrap(services.ErrTransient, stageName, "download", detail, err)
		}
	}

	return services.Wrap(services.ErrExternalTool, stageName, "download", detail, err)
}

func firstErrorLine(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "error") {
			return line
		}
	}
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		if idx := strings.IndexByte(trimmed, '\n'); idx > 0 {
			return trimmed[:idx]
		}
		return trimmed
	}
	return "yt-dlp failed"
}

func findDownloaded(destDir string) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		supported := false
		for _, known := range mediaExtensions {
			if ext == known {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(destDir, entry.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", errors.New("no media file produced")
	}
	return newest, nil
}

var _ Client = (*CLI)(nil)
