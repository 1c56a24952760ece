package workflow

import (
	"context"

	"reelnotes/internal/logging"
	"reelnotes/internal/queue"
	"reelnotes/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Halted      bool
	LastError   string
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	stages := make([]pipelineStage, len(m.stages))
	copy(stages, m.stages)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		Halted:      m.halted.Load(),
		QueueStats:  stats,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}
