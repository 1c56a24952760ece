package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reelnotes/internal/queue"
	"reelnotes/internal/testsupport"
)

func TestInsertURLDedupes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	canonical := "https://instagram.com/reel/ABC123"

	item, created, err := store.InsertURL(ctx, canonical, "https://www.instagram.com/reel/ABC123/")
	if err != nil {
		t.Fatalf("InsertURL failed: %v", err)
	}
	if !created {
		t.Fatal("expected first insert to create")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}
	if item.OriginalURL != "https://www.instagram.com/reel/ABC123/" {
		t.Fatalf("unexpected original url: %q", item.OriginalURL)
	}

	again, created, err := store.InsertURL(ctx, canonical, canonical)
	if err != nil {
		t.Fatalf("second InsertURL failed: %v", err)
	}
	if created {
		t.Fatal("expected second insert to be a no-op")
	}
	if again.ID != item.ID {
		t.Fatalf("expected same item, got %d and %d", item.ID, again.ID)
	}
}

func TestInsertURLIgnoresCompletedRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/DONE1")
	item.Status = queue.StatusCompleted
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// A completed record still blocks re-enqueueing of the same URL.
	_, created, err := store.InsertURL(ctx, item.URL, item.URL)
	if err != nil {
		t.Fatalf("InsertURL failed: %v", err)
	}
	if created {
		t.Fatal("expected completed record to suppress re-insert")
	}
}

func TestCanonicalVariantsCollapse(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	variants := []string{
		"https://www.instagram.com/reel/XYZ789/",
		"https://instagram.com/reel/XYZ789",
		"https://instagram.com/reel/XYZ789?utm_source=share",
	}

	var firstID int64
	for i, raw := range variants {
		canonical, err := queue.CanonicalURL(raw)
		if err != nil {
			t.Fatalf("CanonicalURL(%q) failed: %v", raw, err)
		}
		item, created, err := store.InsertURL(ctx, canonical, raw)
		if err != nil {
			t.Fatalf("InsertURL(%q) failed: %v", raw, err)
		}
		if i == 0 {
			if !created {
				t.Fatal("expected first variant to create")
			}
			firstID = item.ID
			continue
		}
		if created {
			t.Fatalf("variant %q created a duplicate record", raw)
		}
		if item.ID != firstID {
			t.Fatalf("variant %q mapped to item %d, want %d", raw, item.ID, firstID)
		}
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one ledger record, got %d", len(items))
	}
}

func TestUpdatePersistsPipelineFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.InsertURL(t, store, "https://instagram.com/p/FIELDS1")

	item.Status = queue.StatusTranscoded
	item.SourcePath = "/tmp/source.mp4"
	item.OutputPath = "/tmp/output.mp4"
	item.ThumbnailURL = "https://cdn.example.com/thumb.jpg"
	item.MetadataJSON = `{"author":"chef"}`
	item.Transcoded = true
	item.FetchAttempts = 2
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusTranscoded {
		t.Fatalf("unexpected status: %s", fetched.Status)
	}
	if !fetched.Transcoded {
		t.Fatal("expected transcoded flag persisted")
	}
	if fetched.FetchAttempts != 2 {
		t.Fatalf("unexpected fetch attempts: %d", fetched.FetchAttempts)
	}
	if fetched.MetadataJSON != `{"author":"chef"}` {
		t.Fatalf("unexpected metadata: %q", fetched.MetadataJSON)
	}
	if fetched.MediaPath() != "/tmp/output.mp4" {
		t.Fatalf("unexpected media path: %q", fetched.MediaPath())
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"fetching", queue.StatusFetching, queue.StatusPending},
		{"transcoding", queue.StatusTranscoding, queue.StatusFetched},
		{"writing_note", queue.StatusWritingNote, queue.StatusTranscoded},
		{"enhancing", queue.StatusEnhancing, queue.StatusNoted},
	}
	var ids []int64
	for i, tc := range cases {
		item := testsupport.InsertURL(t, store, fmt.Sprintf("https://instagram.com/reel/RESET%d", i))
		item.Status = tc.initialStatus
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d items reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()

	stale := testsupport.InsertURL(t, store, "https://instagram.com/reel/STALE1")
	stale.Status = queue.StatusFetching
	old := time.Now().UTC().Add(-10 * time.Minute)
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.InsertURL(t, store, "https://instagram.com/reel/FRESH1")
	fresh.Status = queue.StatusEnhancing
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reclaimed item, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != queue.StatusPending {
		t.Fatalf("expected pending after reclaim, got %s", reclaimed.Status)
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != queue.StatusEnhancing {
		t.Fatalf("expected fresh item untouched, got %s", untouched.Status)
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/RETRY1")
	item.Status = queue.StatusFailed
	item.FetchAttempts = 3
	item.ErrorMessage = "acquire media: download failed"
	item.Marked = true
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx, item.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one retried item, got %d", count)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", updated.Status)
	}
	if updated.FetchAttempts != 0 {
		t.Fatalf("expected attempts reset, got %d", updated.FetchAttempts)
	}
	if updated.ErrorMessage != "" {
		t.Fatalf("expected error cleared, got %q", updated.ErrorMessage)
	}
	if updated.Marked {
		t.Fatal("expected marked cleared so the queue document gets a fresh outcome")
	}
}

func TestUnmarkedFinished(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()

	done := testsupport.InsertURL(t, store, "https://instagram.com/reel/MARK1")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	failed := testsupport.InsertURL(t, store, "https://instagram.com/reel/MARK2")
	failed.SetFailed("acquire media: gone")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	pending := testsupport.InsertURL(t, store, "https://instagram.com/reel/MARK3")
	_ = pending

	items, err := store.UnmarkedFinished(ctx)
	if err != nil {
		t.Fatalf("UnmarkedFinished failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two unmarked items, got %d", len(items))
	}

	if err := store.SetMarked(ctx, done.ID); err != nil {
		t.Fatalf("SetMarked failed: %v", err)
	}
	items, err = store.UnmarkedFinished(ctx)
	if err != nil {
		t.Fatalf("UnmarkedFinished failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != failed.ID {
		t.Fatalf("expected only the failed item, got %#v", items)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.InsertURL(t, store, "https://instagram.com/reel/STAT1")
	b := testsupport.InsertURL(t, store, "https://instagram.com/reel/STAT2")
	c := testsupport.InsertURL(t, store, "https://instagram.com/reel/STAT3")

	b.Status = queue.StatusFetching
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	c.Status = queue.StatusCompleted
	if err := store.Update(ctx, c); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	_ = a

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Pending != 1 || health.Processing != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}

func TestNextForStatusesOrdersByCreation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.InsertURL(t, store, "https://instagram.com/reel/ORDER1")
	testsupport.InsertURL(t, store, "https://instagram.com/reel/ORDER2")

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending item, got %#v", next)
	}
}

func TestClearCompletedLeavesOthers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done := testsupport.InsertURL(t, store, "https://instagram.com/reel/CLR1")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.InsertURL(t, store, "https://instagram.com/reel/CLR2")

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removed, got %d", removed)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].Status != queue.StatusPending {
		t.Fatalf("unexpected remaining items: %#v", items)
	}
}
