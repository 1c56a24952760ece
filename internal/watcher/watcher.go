package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reelnotes/internal/config"
	"reelnotes/internal/fileutil"
	"reelnotes/internal/logging"
	"reelnotes/internal/notifications"
	"reelnotes/internal/queue"
)

// Watcher observes the queue document and feeds new URLs into the ledger.
type Watcher struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	debounce time.Duration

	// fileMu serializes scans and markback so the document is a stable
	// snapshot for each pass.
	fileMu sync.Mutex

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	mu      sync.Mutex
	running bool
	cancel  func()
	done    chan struct{}
}

// NewWatcher constructs a watcher with the default ntfy notifier.
func NewWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Watcher {
	return NewWatcherWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewWatcherWithNotifier constructs a watcher with a caller-provided notifier.
func NewWatcherWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Watcher {
	debounce := time.Duration(cfg.Workflow.WatchDebounce) * time.Second
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "watcher"),
		notifier: notifier,
		debounce: debounce,
	}
}

// Start performs the initial scan and begins watching the queue document's
// directory. It returns after the watch is established.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.mu.Unlock()

	if err := EnsureQueueFile(w.cfg); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := w.Scan(runCtx); err != nil {
		w.logger.Warn("initial queue scan failed", logging.Error(err))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.cfg.Paths.QueueFile)); err != nil {
		fsw.Close()
		cancel()
		return fmt.Errorf("watch queue directory: %w", err)
	}

	w.mu.Lock()
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.eventLoop(runCtx, fsw)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	<-done

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()
}

func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer fsw.Close()

	reconcileInterval := time.Duration(w.cfg.Workflow.QueuePollInterval) * time.Second
	if reconcileInterval <= 0 {
		reconcileInterval = 5 * time.Second
	}
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	queueFile := filepath.Clean(w.cfg.Paths.QueueFile)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != queueFile {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.scheduleScan(ctx)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", logging.Error(err))
		case <-ticker.C:
			if err := w.reconcile(ctx); err != nil {
				w.logger.Warn("queue markback failed", logging.Error(err))
			}
		}
	}
}

// scheduleScan resets the debounce timer. Editors fire bursts of writes for
// one save; only the quiet period after the last one triggers a scan.
func (w *Watcher) scheduleScan(ctx context.Context) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.Scan(ctx); err != nil {
			w.logger.Warn("queue scan failed", logging.Error(err))
		}
	})
}

// Scan reads the queue document, inserts every URL the ledger has not seen,
// and reconciles finished records back into the document.
func (w *Watcher) Scan(ctx context.Context) error {
	w.fileMu.Lock()
	defer w.fileMu.Unlock()

	content, err := os.ReadFile(w.cfg.Paths.QueueFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read queue file: %w", err)
	}

	for _, raw := range ExtractURLs(string(content)) {
		canonical, err := queue.CanonicalURL(raw)
		if err != nil {
			w.logger.Warn("skipping malformed url", logging.String(logging.FieldURL, raw), logging.Error(err))
			continue
		}
		item, inserted, err := w.store.InsertURL(ctx, canonical, raw)
		if err != nil {
			return fmt.Errorf("insert url %s: %w", canonical, err)
		}
		if !inserted {
			continue
		}
		w.logger.Info("queued new url",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldURL, canonical),
		)
		if w.notifier != nil {
			if err := w.notifier.NotifyURLDetected(ctx, canonical); err != nil {
				w.logger.Warn("detection notification failed", logging.Error(err))
			}
		}
	}

	return w.reconcileLocked(ctx)
}

// reconcile runs markback on its own, used by the periodic timer.
func (w *Watcher) reconcile(ctx context.Context) error {
	w.fileMu.Lock()
	defer w.fileMu.Unlock()
	return w.reconcileLocked(ctx)
}

func (w *Watcher) reconcileLocked(ctx context.Context) error {
	finished, err := w.store.UnmarkedFinished(ctx)
	if err != nil {
		return fmt.Errorf("list unmarked items: %w", err)
	}
	if len(finished) == 0 {
		return nil
	}

	raw, err := os.ReadFile(w.cfg.Paths.QueueFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read queue file: %w", err)
	}

	content := string(raw)
	changed := false
	for _, item := range finished {
		updated, marked := MarkFinished(content, item)
		if marked {
			content = updated
			changed = true
		}
	}
	if changed {
		if err := fileutil.WriteFileAtomic(w.cfg.Paths.QueueFile, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write queue file: %w", err)
		}
	}

	// Marked is set even when the URL is gone from the document, otherwise
	// a hand-edited file would make reconcile retry forever.
	for _, item := range finished {
		if err := w.store.SetMarked(ctx, item.ID); err != nil {
			return fmt.Errorf("set marked for item %d: %w", item.ID, err)
		}
	}
	return nil
}
