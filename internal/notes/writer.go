package notes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"reelnotes/internal/config"
	"reelnotes/internal/fileutil"
	"reelnotes/internal/logging"
	"reelnotes/internal/notifications"
	"reelnotes/internal/queue"
	"reelnotes/internal/scrape"
	"reelnotes/internal/services"
	"reelnotes/internal/stage"
)

// Writer renders the markdown note and moves media into the vault. Any
// failure here is a storage failure: the vault is unwritable and the
// workflow manager stops starting new items.
type Writer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
}

// NewWriter constructs the note writing stage handler.
func NewWriter(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Writer {
	return NewWriterWithDependencies(cfg, store, logger, notifications.NewService(cfg))
}

// NewWriterWithDependencies allows injecting collaborators (used in tests).
func NewWriterWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Writer {
	return &Writer{
		store:    store,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "notes"),
		notifier: notifier,
	}
}

func (w *Writer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, w.logger)
	item.ErrorMessage = ""
	logger.Info("starting note write", logging.String("url", item.URL))
	return nil
}

func (w *Writer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, w.logger)

	meta, err := stage.ItemMetadata(item)
	if err != nil {
		// Metadata is best effort; an empty frontmatter note still beats
		// losing the media.
		meta = scrape.Metadata{}
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		if code := queue.Shortcode(item.URL); code != "" {
			title = "Instagram Reel " + code
		} else {
			title = "Instagram Reel"
		}
	}

	notePath := item.NotePath
	if notePath == "" {
		notePath = fileutil.UniquePath(filepath.Join(w.cfg.Paths.NotesDir, Filename(title)))
	}

	mediaFile, err := w.placeMedia(ctx, item, notePath)
	if err != nil {
		return err
	}

	doc := Build(BuildInput{Meta: meta, SourceURL: item.URL, MediaFile: mediaFile})
	doc.Front.Title = title
	rendered, err := doc.Render()
	if err != nil {
		return services.Wrap(services.ErrValidation, "write note", "render", "failed to render note", err)
	}
	if err := os.MkdirAll(filepath.Dir(notePath), 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "write note", "ensure notes dir", "failed to create notes directory", err)
	}
	if err := fileutil.WriteFileAtomic(notePath, []byte(rendered), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "write note", "write", "failed to write note file", err)
	}
	item.NotePath = notePath
	logger.Info("note written", logging.String("note_path", notePath))

	if w.notifier != nil {
		if err := w.notifier.NotifyNoteCreated(ctx, title, notePath); err != nil {
			logger.Warn("note created notification failed", logging.Error(err))
		}
	}
	return nil
}

// placeMedia moves the pipeline output into the attachments dir and returns
// the attachment filename for the note embed. Items without media (fetch
// degraded to metadata only) produce a note with no Video section.
func (w *Writer) placeMedia(ctx context.Context, item *queue.Item, notePath string) (string, error) {
	source := strings.TrimSpace(item.MediaPath())
	if source == "" {
		return "", nil
	}
	if err := os.MkdirAll(w.cfg.Paths.AttachmentsDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "write note", "ensure attachments dir", "failed to create attachments directory", err)
	}
	ext := filepath.Ext(source)
	if ext == "" {
		ext = ".mp4"
	}
	noteBase := strings.TrimSuffix(filepath.Base(notePath), ".md")
	target := fileutil.UniquePath(filepath.Join(w.cfg.Paths.AttachmentsDir, noteBase+ext))
	if err := fileutil.MoveFile(source, target); err != nil {
		return "", services.Wrap(services.ErrStorage, "write note", "move media", "failed to move media into attachments dir", err)
	}
	item.OutputPath = target
	// Remove the uncompressed original when the transcoded copy moved.
	if item.Transcoded && item.SourcePath != "" && item.SourcePath != source {
		if err := os.Remove(item.SourcePath); err != nil && !os.IsNotExist(err) {
			logging.WithContext(ctx, w.logger).Warn("failed to remove staged original", logging.Error(err))
		}
	}
	item.SourcePath = ""
	return filepath.Base(target), nil
}

// HealthCheck verifies the vault directories are configured and writable.
func (w *Writer) HealthCheck(ctx context.Context) stage.Health {
	const name = "notes"
	if w.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(w.cfg.Paths.NotesDir) == "" {
		return stage.Unhealthy(name, "notes directory not configured")
	}
	if err := os.MkdirAll(w.cfg.Paths.NotesDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("notes directory unavailable: %v", err))
	}
	return stage.Healthy(name)
}
