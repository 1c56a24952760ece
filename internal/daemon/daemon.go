package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/notifications"
	"reelnotes/internal/queue"
	"reelnotes/internal/watcher"
	"reelnotes/internal/workflow"
)

// Daemon coordinates the watcher and workflow manager and enforces
// single-instance execution via a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	watcher  *watcher.Watcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, w *watcher.Watcher) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || w == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, and watcher")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "reelnotesd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		watcher:  w,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, rolls interrupted items back to the start
// of their stage, and launches the watcher and workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelnotes daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	reset, err := d.store.ResetStuckProcessing(runCtx)
	if err != nil {
		d.releaseLock()
		cancel()
		return fmt.Errorf("reset interrupted items: %w", err)
	}
	if reset > 0 {
		d.logger.Info("rolled interrupted items back to stage start", logging.Int64("count", reset))
	}

	if err := d.workflow.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.watcher.Start(runCtx); err != nil {
		d.workflow.Stop()
		d.releaseLock()
		cancel()
		return fmt.Errorf("start watcher: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("reelnotes daemon started",
		logging.String("lock", d.lockPath),
		logging.String("queue_file", d.cfg.Paths.QueueFile),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watcher.Stop()
	d.workflow.Stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("reelnotes daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// AddURL enqueues an Instagram URL directly, outside the queue document.
func (d *Daemon) AddURL(ctx context.Context, rawURL string) (*queue.Item, bool, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, false, errors.New("url is required")
	}
	canonical, err := queue.CanonicalURL(trimmed)
	if err != nil {
		return nil, false, err
	}
	item, inserted, err := d.store.InsertURL(ctx, canonical, trimmed)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue url: %w", err)
	}
	if inserted {
		d.logger.Info("manual url queued",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldURL, canonical),
		)
	}
	return item, inserted, nil
}

// ClearQueue removes all queue items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed queue items.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed queue items.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// ResetStuck transitions in-flight items back to the start of their stage.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed resets failed items (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  filepath.Join(d.cfg.Paths.LogDir, "queue.db"),
		LockFilePath: d.lockPath,
	}
}
