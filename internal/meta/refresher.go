package meta

import (
	"context"
	"log/slog"
	"time"

	"otboard/pkg/statsapi"
)

// Refresher periodically reloads dashboard metadata from the backend.
// Failures are non-fatal: the store keeps serving the last good copy
// and the next tick retries.
type Refresher struct {
	client   *statsapi.Client
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

func NewRefresher(client *statsapi.Client, store *Store, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		client:   client,
		store:    store,
		interval: interval,
		logger:   logger.With("component", "meta_refresher"),
	}
}

func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	meta, err := r.client.Metadata(fetchCtx)
	if err != nil {
		r.logger.Error("metadata refresh failed", "error", err)
		return
	}

	r.store.Set(meta)
	r.logger.Info("metadata refreshed",
		"lines", len(meta.Lines),
		"date_min", meta.DateRange.Min,
		"date_max", meta.DateRange.Max,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
