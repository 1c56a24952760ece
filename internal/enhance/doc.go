// Package enhance implements the final pipeline stage: AI enhancement of
// the written note. Enhancement is strictly best effort; any Gemini
// failure, quality check included, completes the item with the unenhanced
// note. Only rewriting the note file itself can fail the record, and that
// is a storage failure.
package enhance
