package panel

import (
	"context"
	"log/slog"
	"time"

	"otboard/internal/domain"
	"otboard/internal/filter"
	"otboard/internal/meta"
)

// Warmer pre-populates the response cache with the panels of the
// default view (full available date range, no selectors) so the first
// dashboard load after a restart hits warm entries.
type Warmer struct {
	fetcher *Fetcher
	meta    *meta.Store
	logger  *slog.Logger
}

func NewWarmer(fetcher *Fetcher, metaStore *meta.Store, logger *slog.Logger) *Warmer {
	return &Warmer{
		fetcher: fetcher,
		meta:    metaStore,
		logger:  logger.With("component", "cache_warmer"),
	}
}

// WarmAll waits for the first metadata load, then fetches the default
// dashboard panels once. Per-panel failures are logged and skipped.
func (w *Warmer) WarmAll(ctx context.Context) {
	if !w.waitForMetadata(ctx, 30*time.Second) {
		w.logger.Warn("cache warming skipped, metadata not loaded")
		return
	}

	dateRange, _ := w.meta.DateRange()
	f := domain.DefaultFilter()
	f.DateFrom = dateRange.Min
	f.DateTo = dateRange.Max
	f = filter.Normalize(f)

	start := time.Now()
	w.logger.Info("starting cache warming", "date_from", f.DateFrom, "date_to", f.DateTo)

	warmed := 0
	for _, p := range Dashboard() {
		if _, err := w.fetcher.Fetch(ctx, p, f, domain.ViewPunctuality); err != nil {
			w.logger.Error("failed to warm panel", "panel", p, "error", err)
			continue
		}
		warmed++
	}

	w.logger.Info("cache warming completed",
		"panels", warmed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Warmer) waitForMetadata(ctx context.Context, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if w.meta.IsReady() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}
