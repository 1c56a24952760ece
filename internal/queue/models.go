package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusFetching    Status = "fetching"
	StatusFetched     Status = "fetched"
	StatusTranscoding Status = "transcoding"
	StatusTranscoded  Status = "transcoded"
	StatusWritingNote Status = "writing_note"
	StatusNoted       Status = "noted"
	StatusEnhancing   Status = "enhancing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusFetching,
	StatusFetched,
	StatusTranscoding,
	StatusTranscoded,
	StatusWritingNote,
	StatusNoted,
	StatusEnhancing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusFetching:    {},
	StatusTranscoding: {},
	StatusWritingNote: {},
	StatusEnhancing:   {},
}

// Processing statuses roll back to the start of their stage, never further,
// so a crash mid-stage re-runs that stage only.
type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusFetching, to: StatusPending},
	{from: StatusTranscoding, to: StatusFetched},
	{from: StatusWritingNote, to: StatusTranscoded},
	{from: StatusEnhancing, to: StatusNoted},
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Item represents a queue item persisted in SQLite. URL is the canonical
// form and is unique across the lifetime of the database; OriginalURL
// preserves whatever was pasted into the queue document.
type Item struct {
	ID              int64
	URL             string
	OriginalURL     string
	Status          Status
	SourcePath      string
	OutputPath      string
	NotePath        string
	ThumbnailURL    string
	MetadataJSON    string
	EnhancementJSON string
	EnhancementMode string
	Transcoded      bool
	FetchAttempts   int
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
	Marked          bool
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status is final for the pipeline.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// SetFailed marks the item as failed with the given error message and
// clears its heartbeat.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.LastHeartbeat = nil
}

// MediaPath returns the file the note should embed. The transcode stage
// sets OutputPath to either the compressed file or, on degradation, the
// original download.
func (i Item) MediaPath() string {
	if i.OutputPath != "" {
		return i.OutputPath
	}
	return i.SourcePath
}
