package notes_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/notes"
	"reelnotes/internal/queue"
	"reelnotes/internal/scrape"
	"reelnotes/internal/services"
	"reelnotes/internal/testsupport"
)

type recordingNotifier struct {
	created []string
}

func (r *recordingNotifier) NotifyURLDetected(context.Context, string) error { return nil }
func (r *recordingNotifier) NotifyNoteCreated(_ context.Context, title, notePath string) error {
	r.created = append(r.created, title)
	return nil
}
func (r *recordingNotifier) NotifyCompleted(context.Context, string, bool) error { return nil }
func (r *recordingNotifier) NotifyError(context.Context, error, string) error    { return nil }
func (r *recordingNotifier) TestNotification(context.Context) error              { return nil }

func newWriter(t *testing.T) (*notes.Writer, *config.Config, *queue.Store, *recordingNotifier) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	return notes.NewWriterWithDependencies(cfg, store, logging.NewNop(), notifier), cfg, store, notifier
}

func itemWithMedia(t *testing.T, cfg *config.Config, store *queue.Store, url string, meta scrape.Metadata) *queue.Item {
	t.Helper()
	item := testsupport.InsertURL(t, store, url)
	encoded, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	item.MetadataJSON = string(encoded)
	item.SourcePath = filepath.Join(cfg.Paths.StagingDir, "reel-TEST.mp4")
	item.OutputPath = item.SourcePath
	if err := os.WriteFile(item.SourcePath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return item
}

func TestWriterCreatesNoteAndMovesMedia(t *testing.T) {
	w, cfg, store, notifier := newWriter(t)
	item := itemWithMedia(t, cfg, store, "https://instagram.com/reel/NOTE1", scrape.Metadata{
		Title:       "Hand Pulled Noodles",
		Author:      "noodle_master",
		Description: "Resting the dough is the secret.",
	})

	if err := w.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if item.NotePath == "" {
		t.Fatal("expected note path recorded")
	}
	content, err := os.ReadFile(item.NotePath)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if !strings.Contains(string(content), "title: Hand Pulled Noodles") {
		t.Fatalf("note missing frontmatter title:\n%s", content)
	}
	if !strings.Contains(string(content), "![[Hand Pulled Noodles.mp4]]") {
		t.Fatalf("note missing media embed:\n%s", content)
	}
	attachment := filepath.Join(cfg.Paths.AttachmentsDir, "Hand Pulled Noodles.mp4")
	if _, err := os.Stat(attachment); err != nil {
		t.Fatalf("attachment not moved: %v", err)
	}
	if item.OutputPath != attachment {
		t.Fatalf("expected output path updated to %q, got %q", attachment, item.OutputPath)
	}
	if len(notifier.created) != 1 {
		t.Fatalf("expected one note created notification, got %v", notifier.created)
	}
}

func TestWriterReusesExistingNotePath(t *testing.T) {
	w, cfg, store, _ := newWriter(t)
	item := itemWithMedia(t, cfg, store, "https://instagram.com/reel/AGAIN", scrape.Metadata{Title: "Repeat Run"})
	existing := filepath.Join(cfg.Paths.NotesDir, "Chosen Name.md")
	item.NotePath = existing

	if err := w.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if item.NotePath != existing {
		t.Fatalf("expected note path unchanged, got %q", item.NotePath)
	}
	if _, err := os.Stat(existing); err != nil {
		t.Fatalf("note not written at existing path: %v", err)
	}
}

func TestWriterWithoutMediaOmitsVideoSection(t *testing.T) {
	w, _, store, _ := newWriter(t)
	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/NOMEDIA")
	meta, _ := json.Marshal(scrape.Metadata{Title: "Metadata Only", Description: "caption text"})
	item.MetadataJSON = string(meta)

	if err := w.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	content, err := os.ReadFile(item.NotePath)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if strings.Contains(string(content), "## Video") {
		t.Fatalf("expected no video section without media:\n%s", content)
	}
}

func TestWriterFallsBackToShortcodeTitle(t *testing.T) {
	w, _, store, _ := newWriter(t)
	item := testsupport.InsertURL(t, store, "https://instagram.com/reel/CODE99")

	if err := w.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if filepath.Base(item.NotePath) != "Instagram Reel CODE99.md" {
		t.Fatalf("unexpected note filename %q", filepath.Base(item.NotePath))
	}
}

func TestWriterUnwritableVaultIsStorageFailure(t *testing.T) {
	w, cfg, store, _ := newWriter(t)
	item := itemWithMedia(t, cfg, store, "https://instagram.com/reel/LOCKED", scrape.Metadata{Title: "Locked Out"})

	// Replace the notes dir with a file so directory creation fails.
	notesDir := cfg.Paths.NotesDir
	if err := os.RemoveAll(notesDir); err != nil {
		t.Fatalf("remove notes dir: %v", err)
	}
	if err := os.WriteFile(notesDir, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	err := w.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected storage failure")
	}
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !services.IsStorage(err) {
		t.Fatal("expected IsStorage to report true")
	}
}
