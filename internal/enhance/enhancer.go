package enhance

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"reelnotes/internal/config"
	"reelnotes/internal/fileutil"
	"reelnotes/internal/logging"
	"reelnotes/internal/notes"
	"reelnotes/internal/notifications"
	"reelnotes/internal/queue"
	"reelnotes/internal/services"
	"reelnotes/internal/services/gemini"
	"reelnotes/internal/stage"
)

// Enhancement modes recorded on the queue item.
const (
	ModeText  = "text"
	ModeVideo = "video"
)

// Client is the Gemini surface the enhance stage needs.
type Client interface {
	Configured() bool
	CheckQuality(ctx context.Context, description string) (gemini.QualityAssessment, error)
	EnhanceText(ctx context.Context, description, author string) (*gemini.EnhancedContent, error)
	EnhanceVideo(ctx context.Context, mediaPath, description string) (*gemini.EnhancedContent, error)
}

// Enhancer runs the AI enhancement stage.
type Enhancer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   Client
	notifier notifications.Service
}

// NewEnhancer constructs the enhance stage handler using default dependencies.
func NewEnhancer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Enhancer {
	client := gemini.NewClient(gemini.Config{
		APIKey:                cfg.Gemini.APIKey,
		BaseURL:               cfg.Gemini.BaseURL,
		QualityModel:          cfg.Gemini.QualityModel,
		EnhanceModel:          cfg.Gemini.EnhanceModel,
		QualityTimeoutSeconds: cfg.Gemini.QualityTimeout,
		EnhanceTimeoutSeconds: cfg.Gemini.EnhanceTimeout,
		UploadTimeoutSeconds:  cfg.Gemini.UploadTimeout,
	})
	return NewEnhancerWithDependencies(cfg, store, logger, client, notifications.NewService(cfg))
}

// NewEnhancerWithDependencies allows injecting collaborators (used in tests).
func NewEnhancerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Client, notifier notifications.Service) *Enhancer {
	return &Enhancer{
		store:    store,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "enhance"),
		client:   client,
		notifier: notifier,
	}
}

func (e *Enhancer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.ErrorMessage = ""
	logger.Info("starting enhancement", logging.String("note_path", item.NotePath))
	return nil
}

func (e *Enhancer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	if !e.cfg.Gemini.AutoEnhance || e.client == nil || !e.client.Configured() {
		logger.Info("enhancement skipped", logging.Bool("auto_enhance", e.cfg.Gemini.AutoEnhance))
		e.notifyCompleted(ctx, item, false)
		return nil
	}

	raw, err := os.ReadFile(item.NotePath)
	if err != nil {
		logger.Warn("note unreadable, completing unenhanced", logging.Error(err))
		e.notifyCompleted(ctx, item, false)
		return nil
	}
	doc, err := notes.Parse(string(raw))
	if err != nil {
		logger.Warn("note unparseable, completing unenhanced", logging.Error(err))
		e.notifyCompleted(ctx, item, false)
		return nil
	}
	if doc.Front.AIEnhanced {
		logger.Info("note already enhanced, skipping")
		e.notifyCompleted(ctx, item, true)
		return nil
	}

	description, _ := doc.Section(notes.SectionDescription)
	mode, reasoning := e.pickMode(ctx, item, description)
	if mode == "" {
		logger.Warn("quality check failed, completing unenhanced",
			logging.String("reasoning", reasoning),
		)
		e.notifyCompleted(ctx, item, false)
		return nil
	}
	logger.Info("enhancement mode selected",
		logging.String("mode", mode),
		logging.String("reasoning", reasoning),
	)

	content, err := e.run(ctx, item, mode, description, doc.Front.Author)
	if err != nil {
		logger.Warn("enhancement failed, completing unenhanced",
			logging.String("mode", mode),
			logging.Error(err),
		)
		e.notifyCompleted(ctx, item, false)
		return nil
	}

	notes.Amend(doc, content, e.cfg.Gemini.EnhanceModel)
	rendered, renderErr := doc.Render()
	if renderErr != nil {
		logger.Warn("enhanced note render failed, completing unenhanced", logging.Error(renderErr))
		e.notifyCompleted(ctx, item, false)
		return nil
	}
	if err := fileutil.WriteFileAtomic(item.NotePath, []byte(rendered), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "enhance", "write note", "failed to rewrite enhanced note", err)
	}

	if encoded, err := json.Marshal(content); err == nil {
		item.EnhancementJSON = string(encoded)
	}
	item.EnhancementMode = mode
	logger.Info("enhancement completed", logging.String("mode", mode))
	e.notifyCompleted(ctx, item, true)
	return nil
}

// pickMode chooses text or video enhancement from the caption quality
// check. A thin caption cannot stand in for the footage, so anything short
// of a confident "sufficient" verdict goes to video. An errored quality
// check returns an empty mode: the note stands as written.
func (e *Enhancer) pickMode(ctx context.Context, item *queue.Item, description string) (string, string) {
	if strings.TrimSpace(description) == "" {
		return e.videoOrText(item, description), "no caption to assess"
	}
	assessment, err := e.client.CheckQuality(ctx, description)
	if err != nil {
		return "", "quality check failed: " + err.Error()
	}
	if assessment.SufficientDetail && assessment.Confidence >= e.cfg.Gemini.ConfidenceFloor {
		return ModeText, assessment.Reasoning
	}
	return e.videoOrText(item, description), assessment.Reasoning
}

// videoOrText returns video mode when a media file is available, falling
// back to text when the caption is all there is.
func (e *Enhancer) videoOrText(item *queue.Item, description string) string {
	media := strings.TrimSpace(item.MediaPath())
	if media != "" {
		if _, err := os.Stat(media); err == nil {
			return ModeVideo
		}
	}
	if strings.TrimSpace(description) != "" {
		return ModeText
	}
	return ModeVideo
}

func (e *Enhancer) run(ctx context.Context, item *queue.Item, mode, description, author string) (*gemini.EnhancedContent, error) {
	if mode == ModeVideo {
		return e.client.EnhanceVideo(ctx, item.MediaPath(), description)
	}
	return e.client.EnhanceText(ctx, description, author)
}

func (e *Enhancer) notifyCompleted(ctx context.Context, item *queue.Item, enhanced bool) {
	if e.notifier == nil {
		return
	}
	title := strings.TrimSuffix(filepath.Base(item.NotePath), ".md")
	if title == "" || title == "." {
		title = item.URL
	}
	if err := e.notifier.NotifyCompleted(ctx, title, enhanced); err != nil {
		logging.WithContext(ctx, e.logger).Warn("completion notification failed", logging.Error(err))
	}
}

// HealthCheck reports whether enhancement can run. A missing API key is
// only unhealthy when auto enhancement is switched on.
func (e *Enhancer) HealthCheck(ctx context.Context) stage.Health {
	const name = "enhance"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if !e.cfg.Gemini.AutoEnhance {
		return stage.Healthy(name)
	}
	if e.client == nil || !e.client.Configured() {
		return stage.Unhealthy(name, "gemini api key not configured")
	}
	return stage.Healthy(name)
}
