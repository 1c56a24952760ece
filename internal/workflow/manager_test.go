package workflow_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/queue"
	"reelnotes/internal/services"
	"reelnotes/internal/stage"
	"reelnotes/internal/testsupport"
	"reelnotes/internal/workflow"
)

type stubStage struct {
	name        string
	executeHook func(context.Context, *queue.Item) error
	health      stage.Health

	mu       sync.Mutex
	executed int
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	item.ErrorMessage = ""
	return nil
}

func (s *stubStage) Execute(ctx context.Context, item *queue.Item) error {
	s.mu.Lock()
	s.executed++
	s.mu.Unlock()
	if s.executeHook != nil {
		return s.executeHook(ctx, item)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed
}

func newTestManager(t *testing.T, set workflow.StageSet) (*workflow.Manager, *config.Config, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.MaxConcurrent = 2
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManagerWithStages(cfg, store, logging.NewNop(), nil, set)
	return mgr, cfg, store
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", want)
		default:
		}
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if item.Status == want {
			return item
		}
		if item.Status == queue.StatusFailed && want != queue.StatusFailed {
			t.Fatalf("item failed while waiting for %q: %s", want, item.ErrorMessage)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerRunsPipelineToCompletion(t *testing.T) {
	set := workflow.StageSet{
		Fetcher:    newStubStage("fetch"),
		Transcoder: newStubStage("transcode"),
		NoteWriter: newStubStage("write-note"),
		Enhancer:   newStubStage("enhance"),
	}
	mgr, _, store := newTestManager(t, set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/PIPELINE1")
	done := waitForStatus(t, store, item.ID, queue.StatusCompleted)

	if done.ErrorMessage != "" {
		t.Fatalf("unexpected error message: %q", done.ErrorMessage)
	}
	if done.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on completion")
	}
	for _, stg := range []*stubStage{
		set.Fetcher.(*stubStage),
		set.Transcoder.(*stubStage),
		set.NoteWriter.(*stubStage),
		set.Enhancer.(*stubStage),
	} {
		if stg.executions() != 1 {
			t.Fatalf("stage %s executed %d times", stg.name, stg.executions())
		}
	}
}

func TestManagerClaimsBeforeDispatch(t *testing.T) {
	observed := make(chan queue.Status, 1)
	fetcher := newStubStage("fetch")
	set := workflow.StageSet{Fetcher: fetcher}
	mgr, _, store := newTestManager(t, set)

	fetcher.executeHook = func(ctx context.Context, item *queue.Item) error {
		persisted, err := store.GetByID(ctx, item.ID)
		if err != nil {
			return err
		}
		observed <- persisted.Status
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/CLAIM1")
	waitForStatus(t, store, item.ID, queue.StatusFetched)

	if status := <-observed; status != queue.StatusFetching {
		t.Fatalf("expected durable fetching status during execution, got %q", status)
	}
}

func TestManagerPersistsStageFailure(t *testing.T) {
	fetcher := newStubStage("fetch")
	fetcher.executeHook = func(context.Context, *queue.Item) error {
		return services.Wrap(services.ErrExternalTool, "fetch", "acquire", "acquire failed after 5 attempts", nil)
	}
	mgr, _, store := newTestManager(t, workflow.StageSet{Fetcher: fetcher})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/FAIL1")
	failed := waitForStatus(t, store, item.ID, queue.StatusFailed)

	if failed.ErrorMessage == "" {
		t.Fatal("expected failure message persisted")
	}
	if mgr.Halted() {
		t.Fatal("external tool failure must not halt the pipeline")
	}
}

func TestManagerStorageFailureHaltsNewStarts(t *testing.T) {
	fetcher := newStubStage("fetch")
	transcoder := newStubStage("transcode")
	writer := newStubStage("write-note")
	writer.executeHook = func(context.Context, *queue.Item) error {
		return services.Wrap(services.ErrStorage, "write-note", "write note", "failed to write note file", nil)
	}
	set := workflow.StageSet{
		Fetcher:    fetcher,
		Transcoder: transcoder,
		NoteWriter: writer,
		Enhancer:   newStubStage("enhance"),
	}
	mgr, _, store := newTestManager(t, set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	first := testsupport.InsertURL(t, store, "https://instagram.com/reel/STORAGE1")
	waitForStatus(t, store, first.ID, queue.StatusFailed)

	if !mgr.Halted() {
		t.Fatal("expected storage failure to halt new starts")
	}

	second := testsupport.InsertURL(t, store, "https://instagram.com/reel/STORAGE2")
	time.Sleep(2500 * time.Millisecond)

	parked, err := store.GetByID(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if parked.Status != queue.StatusPending {
		t.Fatalf("expected halted manager to leave new item pending, got %q", parked.Status)
	}
	if fetcher.executions() != 1 {
		t.Fatalf("expected no new fetch dispatch while halted, got %d", fetcher.executions())
	}
}

func TestManagerDrainsInFlightWhileHalted(t *testing.T) {
	writer := newStubStage("write-note")
	writer.executeHook = func(_ context.Context, item *queue.Item) error {
		if strings.Contains(item.URL, "DRAIN1") {
			return services.Wrap(services.ErrStorage, "write-note", "write note", "disk full", nil)
		}
		return nil
	}
	set := workflow.StageSet{
		NoteWriter: writer,
		Enhancer:   newStubStage("enhance"),
	}
	mgr, _, store := newTestManager(t, set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two items already past fetch and transcode, at the note-writing stage.
	first := testsupport.InsertURL(t, store, "https://instagram.com/reel/DRAIN1")
	first.Status = queue.StatusTranscoded
	second := testsupport.InsertURL(t, store, "https://instagram.com/reel/DRAIN2")
	second.Status = queue.StatusTranscoded
	for _, item := range []*queue.Item{first, second} {
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	waitForStatus(t, store, first.ID, queue.StatusFailed)
	waitForStatus(t, store, second.ID, queue.StatusCompleted)

	if !mgr.Halted() {
		t.Fatal("expected halt after storage failure")
	}
}

func TestManagerStatusSummarizesStages(t *testing.T) {
	fetcher := newStubStage("fetch")
	fetcher.health = stage.Unhealthy("fetch", "yt-dlp not found")
	mgr, _, _ := newTestManager(t, workflow.StageSet{Fetcher: fetcher})

	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("manager not started, expected Running=false")
	}
	health, ok := summary.StageHealth["fetch"]
	if !ok {
		t.Fatal("expected fetch stage health")
	}
	if health.Ready || health.Detail != "yt-dlp not found" {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	mgr, _, _ := newTestManager(t, workflow.StageSet{})
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error when no stages configured")
	}
}
