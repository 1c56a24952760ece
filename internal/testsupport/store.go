package testsupport

import (
	"context"
	"testing"

	"reelnotes/internal/config"
	"reelnotes/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertURL records a fresh pending item for tests using the provided store.
func InsertURL(t testing.TB, store *queue.Store, rawURL string) *queue.Item {
	t.Helper()

	canonical, err := queue.CanonicalURL(rawURL)
	if err != nil {
		t.Fatalf("queue.CanonicalURL: %v", err)
	}
	item, created, err := store.InsertURL(context.Background(), canonical, rawURL)
	if err != nil {
		t.Fatalf("store.InsertURL: %v", err)
	}
	if !created {
		t.Fatalf("expected %q to be new in the ledger", rawURL)
	}
	return item
}
