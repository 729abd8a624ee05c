// Package panel names the dashboard panels and fetches their payloads
// from the statistics backend, through the shared response cache, with
// heatmap payloads shaped into render-ready grids.
package panel

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"otboard/internal/cache"
	"otboard/internal/domain"
	"otboard/internal/heatmap"
	"otboard/internal/meta"
	"otboard/pkg/statsapi"
)

const (
	KPI     = "kpi"
	Hourly  = "hourly"
	Weekday = "weekday"
	Stops   = "stops"
	Heatmap = "heatmap"
)

// Dashboard is the panel set of the main dashboard page; the heatmap
// page adds Heatmap.
func Dashboard() []string {
	return []string{KPI, Hourly, Weekday, Stops}
}

func Known(panel string) bool {
	switch panel {
	case KPI, Hourly, Weekday, Stops, Heatmap:
		return true
	}
	return false
}

// ErrRouteRequired is returned for heatmap fetches without a route
// selected; the load carpet is only defined along one route's stops.
var ErrRouteRequired = errors.New("heatmap requires a route filter")

// Stats are the fetcher's lifetime counters.
type Stats struct {
	UpstreamFetches  int64 `json:"upstream_fetches"`
	UpstreamFailures int64 `json:"upstream_failures"`
	CacheHits        int64 `json:"cache_hits"`
	CacheMisses      int64 `json:"cache_misses"`
}

// Fetcher resolves a (panel, filter) pair to its payload. The cache is
// optional; without Redis every fetch goes upstream.
type Fetcher struct {
	api    *statsapi.Client
	cache  *cache.RedisCache
	meta   *meta.Store
	ttl    time.Duration
	logger *slog.Logger

	upstreamFetches  atomic.Int64
	upstreamFailures atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
}

func NewFetcher(api *statsapi.Client, redisCache *cache.RedisCache, metaStore *meta.Store, ttl time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		api:    api,
		cache:  redisCache,
		meta:   metaStore,
		ttl:    ttl,
		logger: logger.With("component", "panel_fetcher"),
	}
}

// Fetch returns the payload for one panel under one filter. The view
// metric only affects the heatmap panel's cell encoding.
func (f *Fetcher) Fetch(ctx context.Context, panel string, flt domain.Filter, view domain.ViewMetric) (any, error) {
	switch panel {
	case KPI:
		return fetchCached(ctx, f, cache.PanelKey(KPI, flt), false, func(ctx context.Context) (*statsapi.KPIStats, error) {
			return f.api.KPIStats(ctx, flt)
		})
	case Hourly:
		return fetchCached(ctx, f, cache.PanelKey(Hourly, flt), false, func(ctx context.Context) (*statsapi.SeriesStats, error) {
			return f.api.HourlyStats(ctx, flt)
		})
	case Weekday:
		return fetchCached(ctx, f, cache.PanelKey(Weekday, flt), false, func(ctx context.Context) (*statsapi.SeriesStats, error) {
			return f.api.WeekdayStats(ctx, flt)
		})
	case Stops:
		return fetchCached(ctx, f, cache.PanelKey(Stops, flt), false, func(ctx context.Context) ([]statsapi.StopStat, error) {
			return f.api.StopStats(ctx, flt)
		})
	case Heatmap:
		return f.fetchHeatmap(ctx, flt, view)
	default:
		return nil, errors.New("unknown panel: " + panel)
	}
}

func (f *Fetcher) fetchHeatmap(ctx context.Context, flt domain.Filter, view domain.ViewMetric) (*heatmap.Grid, error) {
	if flt.Route == "" {
		return nil, ErrRouteRequired
	}
	if !view.Valid() {
		view = domain.ViewPunctuality
	}

	resp, err := fetchCached(ctx, f, cache.PanelKey(Heatmap, flt), true, func(ctx context.Context) (*statsapi.HeatmapResponse, error) {
		return f.api.Heatmap(ctx, flt)
	})
	if err != nil {
		return nil, err
	}
	return heatmap.Build(resp, flt, view, f.meta.Thresholds())
}

// LineStops resolves the stop selector for a line, cached.
func (f *Fetcher) LineStops(ctx context.Context, line, route string) ([]statsapi.LineStop, error) {
	return fetchCached(ctx, f, cache.LineStopsKey(line, route), false, func(ctx context.Context) ([]statsapi.LineStop, error) {
		return f.api.LineStops(ctx, line, route)
	})
}

// Invalidate drops every cached panel payload. Called when settings
// change, since thresholds feed the backend's classification.
func (f *Fetcher) Invalidate(ctx context.Context) {
	if f.cache == nil {
		return
	}
	if err := f.cache.DeletePattern(ctx, cache.PanelKeyPattern); err != nil {
		f.logger.Error("panel cache invalidation failed", "error", err)
	}
}

func (f *Fetcher) Stats() Stats {
	return Stats{
		UpstreamFetches:  f.upstreamFetches.Load(),
		UpstreamFailures: f.upstreamFailures.Load(),
		CacheHits:        f.cacheHits.Load(),
		CacheMisses:      f.cacheMisses.Load(),
	}
}

// fetchCached serves from the cache when possible and falls through to
// the upstream fetch otherwise. Cache errors only cost the reuse, never
// the request.
func fetchCached[T any](ctx context.Context, f *Fetcher, key string, compressed bool, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	if f.cache != nil {
		var (
			hit bool
			err error
		)
		if compressed {
			hit, err = f.cache.GetJSONCompressed(ctx, key, &cached)
		} else {
			hit, err = f.cache.GetJSON(ctx, key, &cached)
		}
		if err == nil && hit {
			f.cacheHits.Add(1)
			return cached, nil
		}
		f.cacheMisses.Add(1)
	}

	f.upstreamFetches.Add(1)
	result, err := fetch(ctx)
	if err != nil {
		f.upstreamFailures.Add(1)
		return result, err
	}

	if f.cache != nil {
		var cacheErr error
		if compressed {
			cacheErr = f.cache.SetJSONCompressed(ctx, key, result, f.ttl)
		} else {
			cacheErr = f.cache.SetJSON(ctx, key, result, f.ttl)
		}
		if cacheErr != nil {
			f.logger.Debug("cache store failed", "key", key, "error", cacheErr)
		}
	}
	return result, nil
}
