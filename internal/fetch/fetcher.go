package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"reelnotes/internal/config"
	"reelnotes/internal/fileutil"
	"reelnotes/internal/logging"
	"reelnotes/internal/queue"
	"reelnotes/internal/scrape"
	"reelnotes/internal/services"
	"reelnotes/internal/services/ytdlp"
	"reelnotes/internal/stage"
)

// Scraper is the metadata source used by the fetch stage.
type Scraper interface {
	Fetch(ctx context.Context, pageURL string) (*scrape.Metadata, error)
}

// Fetcher downloads post media and scrapes metadata for pending items.
type Fetcher struct {
	store      *queue.Store
	cfg        *config.Config
	logger     *slog.Logger
	scraper    Scraper
	downloader ytdlp.Client
	sleeper    func(context.Context, time.Duration) error
}

// NewFetcher constructs the fetch stage handler using default dependencies.
func NewFetcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Fetcher {
	downloader := ytdlp.NewCLI(
		ytdlp.WithBinary(cfg.YtdlpBinary()),
		ytdlp.WithTimeout(time.Duration(cfg.Fetch.Timeout)*time.Second),
	)
	return NewFetcherWithDependencies(cfg, store, logger, scrape.NewScraper(cfg), downloader)
}

// NewFetcherWithDependencies allows injecting collaborators (used in tests).
func NewFetcherWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, scraper Scraper, downloader ytdlp.Client) *Fetcher {
	return &Fetcher{
		store:      store,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "fetch"),
		scraper:    scraper,
		downloader: downloader,
		sleeper:    sleepContext,
	}
}

func (f *Fetcher) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, f.logger)
	item.ErrorMessage = ""
	logger.Info("starting fetch", logging.String("url", item.URL), logging.Int("prior_attempts", item.FetchAttempts))
	return nil
}

func (f *Fetcher) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, f.logger)
	maxAttempts := f.cfg.Fetch.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseDelay := time.Duration(f.cfg.Fetch.RetryBaseDelay) * time.Second

	for {
		attempt := item.FetchAttempts + 1
		err := f.attempt(ctx, item)
		if err == nil {
			item.ErrorMessage = ""
			logger.Info("fetch completed",
				logging.String("source_path", item.SourcePath),
				logging.Int("attempt", attempt),
			)
			return nil
		}

		item.FetchAttempts = attempt
		item.ErrorMessage = err.Error()
		if persistErr := f.store.Update(ctx, item); persistErr != nil {
			return services.Wrap(services.ErrStorage, "fetch", "persist attempt", "failed to record fetch attempt", persistErr)
		}

		if !services.Retryable(err) {
			logger.Warn("fetch failed permanently", logging.Int("attempt", attempt), logging.Error(err))
			return err
		}
		if attempt >= maxAttempts {
			return services.Wrap(services.ErrExternalTool, "fetch", "acquire",
				fmt.Sprintf("acquire failed after %d attempts", attempt), err)
		}

		delay := backoffDelay(baseDelay, attempt)
		logger.Warn("fetch attempt failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if sleepErr := f.sleeper(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// attempt runs one scrape plus download pass. Metadata is persisted before
// the download starts so a mid-download crash keeps the scrape result.
func (f *Fetcher) attempt(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, f.logger)

	if item.MetadataJSON == "" {
		meta, err := f.scraper.Fetch(ctx, f.pageURL(item))
		switch {
		case err == nil:
			encoded, encodeErr := json.Marshal(meta)
			if encodeErr != nil {
				return services.Wrap(services.ErrValidation, "fetch", "encode metadata", "failed to encode scraped metadata", encodeErr)
			}
			item.MetadataJSON = string(encoded)
			item.ThumbnailURL = meta.ThumbnailURL
			if persistErr := f.store.Update(ctx, item); persistErr != nil {
				return services.Wrap(services.ErrStorage, "fetch", "persist metadata", "failed to persist scraped metadata", persistErr)
			}
		case errors.Is(err, services.ErrNotFound):
			// Post removed; the download cannot succeed either.
			return err
		default:
			// Login walls and transient scrape errors leave the note without
			// metadata; the download is still worth attempting.
			logger.Warn("metadata scrape failed", logging.Error(err))
		}
	}

	tempDir := filepath.Join(f.cfg.Paths.StagingDir, "fetch-"+uuid.NewString())
	defer os.RemoveAll(tempDir)

	downloaded, err := f.downloader.Download(ctx, f.pageURL(item), tempDir)
	if err != nil {
		return err
	}

	target := filepath.Join(f.cfg.Paths.StagingDir, stagedName(item, downloaded))
	if err := fileutil.MoveFile(downloaded, target); err != nil {
		return services.Wrap(services.ErrStorage, "fetch", "stage media", "failed to move download into staging dir", err)
	}
	item.SourcePath = target
	return nil
}

// pageURL prefers the URL as pasted; canonicalization can drop query
// parameters some share links need.
func (f *Fetcher) pageURL(item *queue.Item) string {
	if strings.TrimSpace(item.OriginalURL) != "" {
		return item.OriginalURL
	}
	return item.URL
}

func stagedName(item *queue.Item, downloaded string) string {
	ext := filepath.Ext(downloaded)
	if ext == "" {
		ext = ".mp4"
	}
	if code := queue.Shortcode(item.URL); code != "" {
		return fmt.Sprintf("reel-%s%s", code, ext)
	}
	return fmt.Sprintf("reel-%d%s", item.ID, ext)
}

// HealthCheck verifies the staging directory and the yt-dlp binary.
func (f *Fetcher) HealthCheck(ctx context.Context) stage.Health {
	const name = "fetch"
	if f.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(f.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if _, err := exec.LookPath(f.cfg.YtdlpBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("%s not found in PATH", f.cfg.YtdlpBinary()))
	}
	return stage.Healthy(name)
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return delay
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
