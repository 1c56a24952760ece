// Package queue persists pipeline items in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-item recovery, and status transitions
// that mirror the pipeline stages. The canonical URL column carries a UNIQUE
// index, so an insert is also the dedup check: a URL that has ever been
// recorded is never enqueued twice.
//
// Unlike scratch media files, queue rows are durable history. Completed and
// failed items stay in the database until the user clears them explicitly.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or metadata fields, update schema.sql and bump
// schemaVersion.
package queue
