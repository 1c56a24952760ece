// Package ffmpeg wraps the ffmpeg command line encoder for reel compression.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"reelnotes/internal/services"
)

var commandContext = exec.CommandContext

const stageName = "transcode"

// Profile describes the compression target for downloaded reels.
type Profile struct {
	MaxHeight    int
	QualityLevel int
	Codec        string
}

// Client defines media transcode behaviour.
type Client interface {
	Transcode(ctx context.Context, inputPath, outputPath string, profile Profile) error
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

// WithTimeout bounds a single transcode run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", timeout: 10 * time.Minute}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Transcode re-encodes inputPath into outputPath using the profile. The
// scale filter caps height while preserving aspect ratio and leaves
// smaller sources untouched.
func (c *CLI) Transcode(ctx context.Context, inputPath, outputPath string, profile Profile) error {
	if strings.TrimSpace(inputPath) == "" {
		return services.Wrap(services.ErrValidation, stageName, "transcode", "input path required", nil)
	}
	if strings.TrimSpace(outputPath) == "" {
		return services.Wrap(services.ErrValidation, stageName, "transcode", "output path required", nil)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return services.Wrap(services.ErrValidation, stageName, "transcode", "input missing", err)
	}

	codec := profile.Codec
	if codec == "" {
		codec = "libx265"
	}
	quality := profile.QualityLevel
	if quality <= 0 {
		quality = 28
	}

	args := []string{"-y", "-i", inputPath}
	if profile.MaxHeight > 0 {
		scale := fmt.Sprintf("scale=-2:'min(%d,ih)'", profile.MaxHeight)
		args = append(args, "-vf", scale)
	}
	args = append(args,
		"-c:v", codec,
		"-crf", strconv.Itoa(quality),
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
	)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := commandContext(runCtx, c.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, stageName, "transcode", fmt.Sprintf("ffmpeg exceeded %s", c.timeout), runCtx.Err())
		}
		return services.Wrap(services.ErrExternalTool, stageName, "transcode", lastStderrLine(stderr.String()), err)
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrExternalTool, stageName, "transcode", "ffmpeg produced no output", err)
	}
	return nil
}

func lastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "ffmpeg failed"
}

var _ Client = (*CLI)(nil)
