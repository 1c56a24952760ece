package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelnotes/internal/config"
	"reelnotes/internal/notifications"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newCaptureServer(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
	}))
	return server, &requests
}

func enabledConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.URLDetected = true
	cfg.Notifications.NoteCreated = true
	cfg.Notifications.Completed = true
	cfg.Notifications.Errors = true
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyCompleted(context.Background(), "Example", true); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	server, requests := newCaptureServer(t)
	defer server.Close()

	svc := notifications.NewService(enabledConfig(server.URL))
	ctx := context.Background()

	if err := svc.NotifyURLDetected(ctx, "https://instagram.com/reel/ABC"); err != nil {
		t.Fatalf("NotifyURLDetected: %v", err)
	}
	if err := svc.NotifyNoteCreated(ctx, "Hand Pulled Noodles", "/vault/Hand Pulled Noodles.md"); err != nil {
		t.Fatalf("NotifyNoteCreated: %v", err)
	}
	if err := svc.NotifyCompleted(ctx, "Hand Pulled Noodles", false); err != nil {
		t.Fatalf("NotifyCompleted: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "fetch"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}

	if len(*requests) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(*requests))
	}
	got := *requests
	if got[0].title != "Reelnotes - URL Detected" || got[0].message != "Queued: https://instagram.com/reel/ABC" {
		t.Fatalf("unexpected url detected payload %+v", got[0])
	}
	if got[1].tags != "reelnotes,note,created" {
		t.Fatalf("unexpected note created tags %q", got[1].tags)
	}
	if got[2].message != "Ready (unenhanced): Hand Pulled Noodles" || got[2].priority != "high" {
		t.Fatalf("unexpected completion payload %+v", got[2])
	}
	if got[3].title != "Reelnotes - Error" || got[3].message != "Error with fetch: boom" {
		t.Fatalf("unexpected error payload %+v", got[3])
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server, requests := newCaptureServer(t)
	defer server.Close()

	cfg := enabledConfig(server.URL)
	cfg.Notifications.URLDetected = false
	svc := notifications.NewService(cfg)

	if err := svc.NotifyURLDetected(context.Background(), "https://instagram.com/reel/ABC"); err != nil {
		t.Fatalf("NotifyURLDetected: %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("expected disabled event to send nothing, got %d requests", len(*requests))
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	svc := notifications.NewService(enabledConfig(server.URL))
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from ntfy failure")
	}
}
