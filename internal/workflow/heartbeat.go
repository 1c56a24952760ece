package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelnotes/internal/logging"
	"reelnotes/internal/queue"
)

// HeartbeatMonitor keeps in-flight items fresh and reclaims ones whose
// worker died without rolling the status back.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// ReclaimStale moves processing items with expired heartbeats back to the
// start of their stage so they get picked up again.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.timeout)
	reclaimed, err := h.store.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale items", logging.Int64("count", reclaimed))
	}
	return nil
}

// StartLoop refreshes the heartbeat for one item until cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, itemID int64) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.NewComponentLogger(h.logger, "workflow-heartbeat")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, itemID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed",
					logging.Int64(logging.FieldItemID, itemID),
					logging.Error(err),
				)
			}
		}
	}
}
