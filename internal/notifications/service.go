package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelnotes/internal/config"
)

const userAgent = "reelnotes/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyURLDetected(ctx context.Context, url string) error
	NotifyNoteCreated(ctx context.Context, title, notePath string) error
	NotifyCompleted(ctx context.Context, title string, enhanced bool) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		events:   cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	events   config.Notifications
}

func (n *ntfyService) NotifyURLDetected(ctx context.Context, url string) error {
	if !n.events.URLDetected {
		return nil
	}
	data := payload{
		title:   "Reelnotes - URL Detected",
		message: fmt.Sprintf("Queued: %s", strings.TrimSpace(url)),
		tags:    []string{"reelnotes", "queue", "detected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyNoteCreated(ctx context.Context, title, notePath string) error {
	if !n.events.NoteCreated {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Note created: %s", title)
	if notePath = strings.TrimSpace(notePath); notePath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, notePath)
	}
	data := payload{
		title:   "Reelnotes - Note Created",
		message: message,
		tags:    []string{"reelnotes", "note", "created"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCompleted(ctx context.Context, title string, enhanced bool) error {
	if !n.events.Completed {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Ready: %s", title)
	if !enhanced {
		message = fmt.Sprintf("Ready (unenhanced): %s", title)
	}
	data := payload{
		title:    "Reelnotes - Complete",
		message:  message,
		tags:     []string{"reelnotes", "workflow", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.events.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Reelnotes - Error",
		message:  builder.String(),
		tags:     []string{"reelnotes", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Reelnotes - Test",
		message:  "Notification system test",
		tags:     []string{"reelnotes", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyURLDetected(context.Context, string) error          { return nil }
func (noopService) NotifyNoteCreated(context.Context, string, string) error  { return nil }
func (noopService) NotifyCompleted(context.Context, string, bool) error      { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
