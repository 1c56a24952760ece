package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"reelnotes/internal/services"
)

func stubCommand(t *testing.T, mode string) *[]string {
	t.Helper()
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "YTDLP_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &capturedArgs
}

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/yt-dlp"))
	if cli.binary != "/opt/yt-dlp" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestDownloadRequiresURL(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Download(context.Background(), "", t.TempDir()); err == nil {
		t.Fatal("expected error when url is empty")
	}
}

func TestDownloadRequiresDestination(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Download(context.Background(), "https://instagram.com/reel/ABC", ""); err == nil {
		t.Fatal("expected error when destination is empty")
	}
}

func TestDownloadReturnsProducedFile(t *testing.T) {
	capturedArgs := stubCommand(t, "success")

	destDir := t.TempDir()
	// The stub does not actually download, so seed the file yt-dlp would
	// have produced.
	if err := os.WriteFile(filepath.Join(destDir, "reel.mp4"), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	cli := NewCLI()
	path, err := cli.Download(context.Background(), "https://instagram.com/reel/ABC", destDir)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if filepath.Base(path) != "reel.mp4" {
		t.Fatalf("unexpected download path: %q", path)
	}

	args := *capturedArgs
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--no-playlist") {
		t.Fatalf("expected --no-playlist in args, got %v", args)
	}
	if args[len(args)-1] != "https://instagram.com/reel/ABC" {
		t.Fatalf("expected url as final arg, got %v", args)
	}
}

func TestDownloadClassifiesUnavailableAsPermanent(t *testing.T) {
	stubCommand(t, "unavailable")

	cli := NewCLI()
	_, err := cli.Download(context.Background(), "https://instagram.com/reel/GONE", t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected permanent classification, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("unavailable posts must not be retried")
	}
}

func TestDownloadClassifiesNetworkAsTransient(t *testing.T) {
	stubCommand(t, "network")

	cli := NewCLI()
	_, err := cli.Download(context.Background(), "https://instagram.com/reel/FLAKY", t.TempDir())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("network failures should be retried")
	}
}

func TestDownloadFailsWhenNoMediaProduced(t *testing.T) {
	stubCommand(t, "success")

	cli := NewCLI()
	_, err := cli.Download(context.Background(), "https://instagram.com/reel/EMPTY", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("YTDLP_HELPER_MODE") {
	case "success":
		os.Exit(0)
	case "unavailable":
		fmt.Fprintln(os.Stderr, "ERROR: [Instagram] GONE: Video unavailable. This post is unavailable.")
		os.Exit(1)
	case "network":
		fmt.Fprintln(os.Stderr, "ERROR: unable to download webpage: <urlopen error timed out>")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
