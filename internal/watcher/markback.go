package watcher

import (
	"strings"

	"reelnotes/internal/queue"
)

const (
	markDone   = "✅"
	markFailed = "❌"
)

// MarkFinished rewrites the queue document so the item's URL carries its
// outcome. It returns the updated content and whether anything changed.
// Already-marked URLs and URLs the user removed from the document are left
// alone.
func MarkFinished(content string, item *queue.Item) (string, bool) {
	target := strings.TrimSpace(item.OriginalURL)
	if target == "" {
		target = item.URL
	}
	if target == "" || !strings.Contains(content, target) {
		return content, false
	}
	if strings.Contains(content, markDone+" "+target) || strings.Contains(content, markFailed+" "+target) {
		return content, false
	}

	replacement := markDone + " " + target
	if item.Status == queue.StatusFailed {
		replacement = markFailed + " " + target
		if reason := strings.TrimSpace(item.ErrorMessage); reason != "" {
			replacement += " (Error: " + reason + ")"
		}
	}
	return strings.Replace(content, target, replacement, 1), true
}
