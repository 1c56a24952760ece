package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelnotes/internal/logging"
	"reelnotes/internal/queue"
	"reelnotes/internal/services"
)

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, item *queue.Item) error {
	now := time.Now().UTC()
	item.Status = stg.processingStatus
	item.ErrorMessage = ""
	item.LastHeartbeat = &now
	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	return nil
}

func (m *Manager) processItem(ctx context.Context, stg pipelineStage, item *queue.Item) {
	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithStage(services.WithItemID(ctx, item.ID), stg.name), requestID)
	logger := logging.WithContext(stageCtx, m.logger).With(
		logging.String(logging.FieldURL, item.URL),
	)

	stageStart := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
	)

	if err := stg.handler.Prepare(stageCtx, item); err != nil {
		m.handleStageFailure(stageCtx, logger, stg, item, err)
		return
	}
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		m.noteStorageFailure(logger, wrapped)
		return
	}

	execErr := m.executeWithHeartbeat(stageCtx, stg, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("stage interrupted by shutdown")
			return
		}
		m.handleStageFailure(stageCtx, logger, stg, item, execErr)
		return
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	item.ErrorMessage = ""
	item.LastHeartbeat = nil
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		m.noteStorageFailure(logger, wrapped)
		return
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, item *queue.Item) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	execErr := stg.handler.Execute(ctx, item)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, stg pipelineStage, item *queue.Item, stageErr error) {
	m.setLastError(stageErr)
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed without error detail", stg.name)
	}
	item.SetFailed(message)

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			m.noteStorageFailure(logger, fmt.Errorf("persist stage failure: %w", err))
		}
	}

	if services.IsStorage(stageErr) {
		m.noteStorageFailure(logger, stageErr)
	}

	if m.notifier != nil {
		if err := m.notifier.NotifyError(ctx, stageErr, fmt.Sprintf("%s stage for %s", stg.name, item.URL)); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
	}
}
