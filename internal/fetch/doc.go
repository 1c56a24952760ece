// Package fetch implements the first pipeline stage: scraping post
// metadata and downloading the media file. Downloads land in a throwaway
// temp directory and reach the staging dir only on success, so a crashed
// or retried fetch never leaves partial media behind. Transient failures
// retry with exponential backoff against a persisted attempt counter.
package fetch
