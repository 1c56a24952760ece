// Package logging wraps log/slog with the handlers and field conventions
// used across reelnotes: a console handler for interactive runs, a JSON
// handler for log files, and context-derived attributes (item id, stage,
// correlation id) so every pipeline log line can be traced to its record.
package logging
