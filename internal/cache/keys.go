package cache

import (
	"fmt"
	"hash/fnv"

	"otboard/internal/domain"
)

const (
	KeyMetadata     = "metadata"
	PanelKeyPattern = "panel:*"
)

// PanelKey derives the cache key for one panel under one filter. The
// canonical query encoding (sorted keys) makes equal filters collide on
// the same key regardless of how they were built.
func PanelKey(panel string, f domain.Filter) string {
	h := fnv.New64a()
	h.Write([]byte(f.Query().Encode()))
	return fmt.Sprintf("panel:%s:%x", panel, h.Sum64())
}

// LineStopsKey caches the per-line stop selector entries.
func LineStopsKey(line, route string) string {
	h := fnv.New64a()
	h.Write([]byte(line))
	h.Write([]byte{0})
	h.Write([]byte(route))
	return fmt.Sprintf("linestops:%x", h.Sum64())
}
