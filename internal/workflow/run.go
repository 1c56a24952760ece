package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"reelnotes/internal/logging"
)

// Start begins background processing. It returns immediately; stage work
// runs on a bounded worker pool until Stop or context cancellation.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group := &errgroup.Group{}
	limit := m.cfg.Workflow.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	group.SetLimit(limit)

	m.cancel = cancel
	m.group = group
	m.done = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	go m.dispatchLoop(runCtx)
	return nil
}

// Stop terminates dispatch and waits for in-flight stage work to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Manager) dispatchLoop(ctx context.Context) {
	logger := logging.NewComponentLogger(m.logger, "workflow-manager")
	defer func() {
		m.group.Wait()
		close(m.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil {
			logger.Warn("reclaim stale processing failed, stuck items may remain",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}

		item, err := m.store.NextForStatuses(ctx, m.claimableStatuses()...)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to fetch next queue item",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.sleep(ctx, m.errorInterval)
			continue
		}
		if item == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		stg, ok := m.stageByStart[item.Status]
		if !ok {
			logger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
			m.sleep(ctx, m.pollInterval)
			continue
		}

		// Claim durably before dispatch so no other worker sees the item
		// at its start status.
		if err := m.transitionToProcessing(ctx, stg, item); err != nil {
			m.noteStorageFailure(logger, err)
			m.sleep(ctx, m.errorInterval)
			continue
		}

		claimed := item
		m.group.Go(func() error {
			m.processItem(ctx, stg, claimed)
			return nil
		})
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (m *Manager) noteStorageFailure(logger *slog.Logger, err error) {
	m.setLastError(err)
	if m.halted.CompareAndSwap(false, true) {
		logger.Error("ledger persistence failed, halting new pipeline starts",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database and disk space"),
		)
	}
}
