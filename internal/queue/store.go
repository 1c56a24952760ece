package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reelnotes/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertURL records a new URL as pending. The canonical URL carries a
// unique index, so inserting a URL the ledger has ever seen is a no-op:
// the existing item is returned with created=false, regardless of its
// status. This makes the insert itself the dedup decision.
func (s *Store) InsertURL(ctx context.Context, canonical, original string) (*Item, bool, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (url, original_url, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(url) DO NOTHING`,
		canonical,
		nullableString(original),
		StatusPending,
		now,
		now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert url: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	item, err := s.GetByURL(ctx, canonical)
	if err != nil {
		return nil, false, err
	}
	if item == nil {
		return nil, false, fmt.Errorf("url %q missing after insert", canonical)
	}
	return item, affected > 0, nil
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByURL fetches a queue item by its canonical URL.
func (s *Store) GetByURL(ctx context.Context, canonical string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM queue_items WHERE url = ?`, canonical)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by url: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ensureContext(ctx),
		`UPDATE queue_items
         SET url = ?, original_url = ?, status = ?, source_path = ?, output_path = ?,
             note_path = ?, thumbnail_url = ?, metadata_json = ?, enhancement_json = ?,
             enhancement_mode = ?, transcoded = ?, fetch_attempts = ?, error_message = ?,
             updated_at = ?, last_heartbeat = ?, marked = ?
         WHERE id = ?`,
		item.URL,
		nullableString(item.OriginalURL),
		item.Status,
		nullableString(item.SourcePath),
		nullableString(item.OutputPath),
		nullableString(item.NotePath),
		nullableString(item.ThumbnailURL),
		nullableString(item.MetadataJSON),
		nullableString(item.EnhancementJSON),
		nullableString(item.EnhancementMode),
		boolToInt(item.Transcoded),
		item.FetchAttempts,
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(item.LastHeartbeat),
		boolToInt(item.Marked),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextForStatuses returns the oldest item matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ensureContext(ctx), query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UnmarkedFinished returns completed or failed items whose outcome has not
// yet been written back into the queue document.
func (s *Store) UnmarkedFinished(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE status IN (?, ?) AND marked = 0 ORDER BY created_at, id`,
		StatusCompleted,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("query unmarked items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetMarked flags an item as written back into the queue document.
func (s *Store) SetMarked(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(
		ensureContext(ctx),
		`UPDATE queue_items SET marked = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("set marked: %w", err)
	}
	return nil
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed items from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM queue_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const itemColumns = "id, url, original_url, status, source_path, output_path, note_path, thumbnail_url, metadata_json, enhancement_json, enhancement_mode, transcoded, fetch_attempts, error_message, created_at, updated_at, last_heartbeat, marked"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		urlValue         string
		originalURL      sql.NullString
		statusStr        string
		sourcePath       sql.NullString
		outputPath       sql.NullString
		notePath         sql.NullString
		thumbnailURL     sql.NullString
		metadata         sql.NullString
		enhancement      sql.NullString
		enhancementMode  sql.NullString
		transcoded       sql.NullInt64
		fetchAttempts    sql.NullInt64
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
		marked           sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&urlValue,
		&originalURL,
		&statusStr,
		&sourcePath,
		&outputPath,
		&notePath,
		&thumbnailURL,
		&metadata,
		&enhancement,
		&enhancementMode,
		&transcoded,
		&fetchAttempts,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
		&marked,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		URL:             urlValue,
		OriginalURL:     originalURL.String,
		Status:          Status(statusStr),
		SourcePath:      sourcePath.String,
		OutputPath:      outputPath.String,
		NotePath:        notePath.String,
		ThumbnailURL:    thumbnailURL.String,
		MetadataJSON:    metadata.String,
		EnhancementJSON: enhancement.String,
		EnhancementMode: enhancementMode.String,
		ErrorMessage:    errorMessage.String,
	}
	if transcoded.Valid {
		item.Transcoded = transcoded.Int64 != 0
	}
	if fetchAttempts.Valid {
		item.FetchAttempts = int(fetchAttempts.Int64)
	}
	if marked.Valid {
		item.Marked = marked.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
