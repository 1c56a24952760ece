package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/queue"
	"reelnotes/internal/services"
	"reelnotes/internal/services/ffmpeg"
	"reelnotes/internal/stage"
)

// Transcoder compresses fetched media with ffmpeg.
type Transcoder struct {
	store   *queue.Store
	cfg     *config.Config
	logger  *slog.Logger
	encoder ffmpeg.Client
}

// NewTranscoder constructs the transcode stage handler using default dependencies.
func NewTranscoder(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Transcoder {
	encoder := ffmpeg.NewCLI(
		ffmpeg.WithBinary(cfg.FFmpegBinary()),
		ffmpeg.WithTimeout(time.Duration(cfg.Transcode.Timeout)*time.Second),
	)
	return NewTranscoderWithDependencies(cfg, store, logger, encoder)
}

// NewTranscoderWithDependencies allows injecting collaborators (used in tests).
func NewTranscoderWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, encoder ffmpeg.Client) *Transcoder {
	return &Transcoder{
		store:   store,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "transcode"),
		encoder: encoder,
	}
}

func (t *Transcoder) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, t.logger)
	item.ErrorMessage = ""
	logger.Info("starting transcode", logging.String("source_path", item.SourcePath))
	return nil
}

func (t *Transcoder) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, t.logger)
	if strings.TrimSpace(item.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "transcode", "validate inputs",
			"no downloaded media present; rerun fetch", nil)
	}

	if !t.cfg.Transcode.Enabled {
		logger.Info("transcoding disabled, keeping original")
		t.degrade(item)
		return nil
	}

	profile := ffmpeg.Profile{
		MaxHeight:    t.cfg.Transcode.MaxHeight,
		QualityLevel: t.cfg.Transcode.QualityLevel,
		Codec:        t.cfg.Transcode.Codec,
	}
	output := transcodedPath(item.SourcePath)
	if err := t.encoder.Transcode(ctx, item.SourcePath, output, profile); err != nil {
		// Compression is an optimization; the note embeds the original.
		logger.Warn("transcode failed, keeping original", logging.Error(err))
		_ = os.Remove(output)
		t.degrade(item)
		return nil
	}

	item.OutputPath = output
	item.Transcoded = true
	logger.Info("transcode completed",
		logging.String("output_path", output),
		logging.String("codec", profile.Codec),
	)
	return nil
}

func (t *Transcoder) degrade(item *queue.Item) {
	item.OutputPath = item.SourcePath
	item.Transcoded = false
}

func transcodedPath(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(filepath.Dir(source), base+"-compressed.mp4")
}

// HealthCheck reports whether ffmpeg is available. The stage still
// completes without it, so an unhealthy report only predicts degradation.
func (t *Transcoder) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcode"
	if t.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if !t.cfg.Transcode.Enabled {
		return stage.Healthy(name)
	}
	if _, err := exec.LookPath(t.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("%s not found in PATH", t.cfg.FFmpegBinary()))
	}
	return stage.Healthy(name)
}
