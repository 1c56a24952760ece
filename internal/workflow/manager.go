package workflow

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"reelnotes/internal/config"
	"reelnotes/internal/enhance"
	"reelnotes/internal/fetch"
	"reelnotes/internal/notes"
	"reelnotes/internal/notifications"
	"reelnotes/internal/queue"
	"reelnotes/internal/stage"
	"reelnotes/internal/transcode"
)

// StageSet bundles the concrete handlers the manager orchestrates. Any nil
// handler removes its stage from dispatch, which tests use to exercise a
// single stage in isolation.
type StageSet struct {
	Fetcher    stage.Handler
	Transcoder stage.Handler
	NoteWriter stage.Handler
	Enhancer   stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager drives queue items through the pipeline stages.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	stages       []pipelineStage
	stageByStart map[queue.Status]pipelineStage

	heartbeat     *HeartbeatMonitor
	pollInterval  time.Duration
	errorInterval time.Duration

	halted atomic.Bool

	mu      sync.RWMutex
	running bool
	cancel  func()
	done    chan struct{}
	group   *errgroup.Group
	lastErr error
}

// NewManager constructs a manager with the production stage handlers.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	set := StageSet{
		Fetcher:    fetch.NewFetcher(cfg, store, logger),
		Transcoder: transcode.NewTranscoder(cfg, store, logger),
		NoteWriter: notes.NewWriter(cfg, store, logger),
		Enhancer:   enhance.NewEnhancer(cfg, store, logger),
	}
	return NewManagerWithStages(cfg, store, logger, notifications.NewService(cfg), set)
}

// NewManagerWithStages constructs a manager around caller-provided handlers.
func NewManagerWithStages(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, set StageSet) *Manager {
	m := &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logger,
		notifier:      notifier,
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	if m.errorInterval <= 0 {
		m.errorInterval = m.pollInterval
	}

	candidates := []pipelineStage{
		{name: "fetch", handler: set.Fetcher, startStatus: queue.StatusPending, processingStatus: queue.StatusFetching, doneStatus: queue.StatusFetched},
		{name: "transcode", handler: set.Transcoder, startStatus: queue.StatusFetched, processingStatus: queue.StatusTranscoding, doneStatus: queue.StatusTranscoded},
		{name: "write-note", handler: set.NoteWriter, startStatus: queue.StatusTranscoded, processingStatus: queue.StatusWritingNote, doneStatus: queue.StatusNoted},
		{name: "enhance", handler: set.Enhancer, startStatus: queue.StatusNoted, processingStatus: queue.StatusEnhancing, doneStatus: queue.StatusCompleted},
	}
	m.stageByStart = make(map[queue.Status]pipelineStage, len(candidates))
	for _, candidate := range candidates {
		if candidate.handler == nil {
			continue
		}
		m.stages = append(m.stages, candidate)
		m.stageByStart[candidate.startStatus] = candidate
	}
	return m
}

// Halted reports whether a storage failure has stopped new pipeline starts.
func (m *Manager) Halted() bool {
	return m.halted.Load()
}

// LastError returns the most recent stage or dispatch error.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// claimableStatuses returns the stage start statuses eligible for dispatch.
// While halted, pending items stay parked so no new pipeline starts, but
// items already past fetch keep draining.
func (m *Manager) claimableStatuses() []queue.Status {
	halted := m.halted.Load()
	statuses := make([]queue.Status, 0, len(m.stages))
	for _, stg := range m.stages {
		if halted && stg.startStatus == queue.StatusPending {
			continue
		}
		statuses = append(statuses, stg.startStatus)
	}
	return statuses
}
