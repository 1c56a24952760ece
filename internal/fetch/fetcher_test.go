package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelnotes/internal/logging"
	"reelnotes/internal/queue"
	"reelnotes/internal/scrape"
	"reelnotes/internal/services"
	"reelnotes/internal/testsupport"
)

type fakeScraper struct {
	meta  *scrape.Metadata
	err   error
	calls int
}

func (f *fakeScraper) Fetch(ctx context.Context, pageURL string) (*scrape.Metadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.meta, nil
}

type fakeDownloader struct {
	errs  []error
	calls int
}

func (f *fakeDownloader) Download(ctx context.Context, url, destDir string) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return "", f.errs[f.calls-1]
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, "reel.mp4")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func newFetcher(t *testing.T, scraper Scraper, downloader *fakeDownloader) (*Fetcher, *queue.Store, *[]time.Duration) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	fetcher := NewFetcherWithDependencies(cfg, store, logging.NewNop(), scraper, downloader)
	slept := &[]time.Duration{}
	fetcher.sleeper = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return fetcher, store, slept
}

func TestFetcherScrapesAndStagesMedia(t *testing.T) {
	scraper := &fakeScraper{meta: &scrape.Metadata{
		Title:        "Hand Pulled Noodles",
		Description:  "Resting the dough is the secret.",
		ThumbnailURL: "https://cdn.example.com/thumb.jpg",
	}}
	downloader := &fakeDownloader{}
	fetcher, store, _ := newFetcher(t, scraper, downloader)

	item := testsupport.InsertURL(t, store, "https://www.instagram.com/reel/ABC123/")
	if err := fetcher.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if item.SourcePath == "" {
		t.Fatal("expected source path to be set")
	}
	if _, err := os.Stat(item.SourcePath); err != nil {
		t.Fatalf("staged media missing: %v", err)
	}
	if filepath.Base(item.SourcePath) != "reel-ABC123.mp4" {
		t.Fatalf("unexpected staged name %q", filepath.Base(item.SourcePath))
	}
	if item.MetadataJSON == "" || item.ThumbnailURL == "" {
		t.Fatalf("expected metadata persisted, got %+v", item)
	}
	if item.FetchAttempts != 0 {
		t.Fatalf("expected no failed attempts, got %d", item.FetchAttempts)
	}

	// Metadata must be durable before the stage reports success.
	stored, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.MetadataJSON == "" {
		t.Fatal("expected metadata persisted to the store mid-stage")
	}
}

func TestFetcherRetriesTransientFailures(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "fetch", "download", "connection reset", nil)
	downloader := &fakeDownloader{errs: []error{transient}}
	fetcher, store, _ := newFetcher(t, &fakeScraper{meta: &scrape.Metadata{}}, downloader)

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/RETRY1")
	if err := fetcher.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if downloader.calls != 2 {
		t.Fatalf("expected 2 download attempts, got %d", downloader.calls)
	}
	if item.FetchAttempts != 1 {
		t.Fatalf("expected 1 recorded failed attempt, got %d", item.FetchAttempts)
	}
	stored, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.FetchAttempts != 1 {
		t.Fatalf("expected attempt counter persisted, got %d", stored.FetchAttempts)
	}
}

func TestFetcherPermanentFailureSkipsRetry(t *testing.T) {
	permanent := services.Wrap(services.ErrNotFound, "fetch", "download", "video unavailable", nil)
	downloader := &fakeDownloader{errs: []error{permanent, permanent, permanent}}
	fetcher, store, slept := newFetcher(t, &fakeScraper{meta: &scrape.Metadata{}}, downloader)

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/GONE")
	err := fetcher.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if downloader.calls != 1 {
		t.Fatalf("expected single attempt for permanent failure, got %d", downloader.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("expected no backoff sleeps, got %v", *slept)
	}
}

func TestFetcherExhaustsAttemptBudget(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "fetch", "download", "timed out", nil)
	downloader := &fakeDownloader{errs: []error{transient, transient, transient, transient}}
	fetcher, store, _ := newFetcher(t, &fakeScraper{meta: &scrape.Metadata{}}, downloader)
	fetcher.cfg.Fetch.MaxAttempts = 3

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/FLAKY")
	err := fetcher.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if downloader.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", downloader.calls)
	}
	if item.FetchAttempts != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", item.FetchAttempts)
	}
}

func TestFetcherScrapeNotFoundIsFatal(t *testing.T) {
	scraper := &fakeScraper{err: services.Wrap(services.ErrNotFound, "fetch", "scrape", "post removed (404)", nil)}
	downloader := &fakeDownloader{}
	fetcher, store, _ := newFetcher(t, scraper, downloader)

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/REMOVED")
	err := fetcher.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if downloader.calls != 0 {
		t.Fatalf("expected download skipped for removed post, got %d calls", downloader.calls)
	}
}

func TestFetcherToleratesScrapeLoginWall(t *testing.T) {
	scraper := &fakeScraper{err: services.Wrap(services.ErrValidation, "fetch", "scrape", "access denied (403), login wall or rate limit", nil)}
	downloader := &fakeDownloader{}
	fetcher, store, _ := newFetcher(t, scraper, downloader)

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/WALLED")
	if err := fetcher.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if item.MetadataJSON != "" {
		t.Fatalf("expected no metadata behind login wall, got %q", item.MetadataJSON)
	}
	if item.SourcePath == "" {
		t.Fatal("expected media downloaded despite scrape failure")
	}
}

func TestFetcherTempDirCleanedUp(t *testing.T) {
	downloader := &fakeDownloader{}
	fetcher, store, _ := newFetcher(t, &fakeScraper{meta: &scrape.Metadata{}}, downloader)

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/CLEAN")
	if err := fetcher.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	entries, err := os.ReadDir(fetcher.cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			t.Fatalf("expected temp download dirs removed, found %s", entry.Name())
		}
	}
}
