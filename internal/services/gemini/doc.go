// Package gemini wraps the Google Generative Language API for caption
// quality checks and note enhancement. Text enhancement sends the scraped
// description directly; video enhancement uploads the media file, waits for
// it to become ACTIVE, and deletes it after the request completes.
package gemini
