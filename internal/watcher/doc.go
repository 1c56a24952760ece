// Package watcher turns the append-only queue document into pipeline work.
//
// An fsnotify watch on the queue file's directory schedules debounced
// rescans. A scan extracts Instagram URLs in document order, inserts each
// canonical URL into the ledger exactly once, then reconciles finished
// records back into the document with a status mark. Scans and markback
// share one mutex so the document is never read and rewritten concurrently.
package watcher
