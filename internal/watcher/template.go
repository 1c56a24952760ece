package watcher

import (
	"fmt"
	"os"
	"path/filepath"

	"reelnotes/internal/config"
	"reelnotes/internal/fileutil"
)

const queueTemplate = `# Instagram Queue

Paste Instagram URLs below. They will be automatically processed.

---

## How to use

1. Paste an Instagram reel/post URL anywhere in this file
2. The daemon will detect it, download the video, and create a note in %s
3. The video ends up in %s
4. Processed URLs are marked with ✅, failed ones with ❌

---

## Queue

`

// EnsureQueueFile creates the queue document with a usage template when it
// does not exist yet.
func EnsureQueueFile(cfg *config.Config) error {
	path := cfg.Paths.QueueFile
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat queue file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create queue file directory: %w", err)
	}
	content := fmt.Sprintf(queueTemplate, cfg.Paths.NotesDir, cfg.Paths.AttachmentsDir)
	if err := fileutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write queue file template: %w", err)
	}
	return nil
}
