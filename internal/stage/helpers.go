package stage

import (
	"encoding/json"
	"strings"

	"reelnotes/internal/queue"
	"reelnotes/internal/scrape"
	"reelnotes/internal/services"
)

// ItemMetadata decodes the scraped metadata persisted on a queue item.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func ItemMetadata(item *queue.Item) (scrape.Metadata, error) {
	raw := strings.TrimSpace(item.MetadataJSON)
	if raw == "" {
		return scrape.Metadata{}, services.Wrap(
			services.ErrValidation, "stage", "decode metadata",
			"scraped metadata missing; rerun fetch", nil)
	}
	var meta scrape.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return scrape.Metadata{}, services.Wrap(
			services.ErrValidation, "stage", "decode metadata",
			"scraped metadata invalid; rerun fetch", err)
	}
	return meta, nil
}
