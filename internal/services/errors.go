package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalTool marks failures reported by an invoked external binary.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation marks permanent input failures (bad URL, unsupported media).
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks content that no longer exists upstream.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks an exceeded capability deadline.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks failures worth retrying (network classes).
	ErrTransient = errors.New("transient failure")
	// ErrStorage marks local persistence failures. These threaten the dedup
	// guarantee and halt new pipeline starts.
	ErrStorage = errors.New("storage failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a stage error is worth another attempt.
// Timeouts count as transient per the retry policy.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrConfiguration), errors.Is(err, ErrStorage):
		return false
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	// Unclassified errors default to retryable so flaky tooling is not
	// permanently fatal on first contact.
	return true
}

// IsStorage reports whether the error threatens the ledger or note storage.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
