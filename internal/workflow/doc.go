// Package workflow coordinates queue processing across the pipeline stages.
//
// The manager owns every status transition: it claims an item by moving it
// to the stage's processing status, persists that transition, runs the
// stage handler in a bounded worker pool, and persists the outcome before
// the item becomes eligible for its next stage. Storage failures raise a
// halt flag that stops new pipeline starts while in-flight items drain.
package workflow
