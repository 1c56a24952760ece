package stage

import (
	"context"

	"reelnotes/internal/queue"
)

// Handler is one step of the reel pipeline (fetch, transcode, write note,
// enhance). Prepare runs after the item is claimed and may reset per-attempt
// fields; Execute does the work and mutates the item with its results. Both
// receive the item the manager will persist, so recorded paths and metadata
// survive a restart. Errors should carry the services taxonomy so the
// manager can tell storage trouble from a bad reel.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}
