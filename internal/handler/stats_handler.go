package handler

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"otboard/internal/hub"
	"otboard/internal/meta"
	"otboard/internal/panel"
)

// Stats tracks server-wide metrics
type Stats struct {
	startTime        time.Time
	requestCount     atomic.Int64
	wsConnections    atomic.Int64
	wsMessagesIn     atomic.Int64
	wsMessagesOut    atomic.Int64
	rateLimitBlocked atomic.Int64
}

// Global stats instance
var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()         { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections()    { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections()    { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()     { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut()    { s.wsMessagesOut.Add(1) }
func (s *Stats) IncRateLimitBlocked() { s.rateLimitBlocked.Add(1) }

// CountRequests is a middleware incrementing the request counter.
func CountRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServerStats.IncRequests()
		next.ServeHTTP(w, r)
	})
}

type StatsHandler struct {
	hub     *hub.Hub
	fetcher *panel.Fetcher
	meta    *meta.Store
}

func NewStatsHandler(wsHub *hub.Hub, fetcher *panel.Fetcher, metaStore *meta.Store) *StatsHandler {
	return &StatsHandler{
		hub:     wsHub,
		fetcher: fetcher,
		meta:    metaStore,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Upstream  UpstreamStatsResponse  `json:"upstream"`
	Cache     CacheStatsResponse     `json:"cache"`
	Metadata  MetadataStatsResponse  `json:"metadata"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	RateLimited   int64     `json:"rate_limited"`
	Version       string    `json:"version"`
}

type WebSocketStatsResponse struct {
	Connections int64 `json:"connections"`
	Clients     int   `json:"clients"`
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
}

type UpstreamStatsResponse struct {
	Fetches  int64 `json:"fetches"`
	Failures int64 `json:"failures"`
}

type CacheStatsResponse struct {
	Hits   int64   `json:"hits"`
	Misses int64   `json:"misses"`
	Ratio  float64 `json:"hit_ratio"`
}

type MetadataStatsResponse struct {
	IsLoaded   bool      `json:"is_loaded"`
	LastUpdate time.Time `json:"last_update"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(ServerStats.startTime)

	fetcherStats := h.fetcher.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var ratio float64
	if total := fetcherStats.CacheHits + fetcherStats.CacheMisses; total > 0 {
		ratio = float64(fetcherStats.CacheHits) / float64(total)
	}

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			RateLimited:   ServerStats.rateLimitBlocked.Load(),
			Version:       "1.0.0",
		},
		WebSocket: WebSocketStatsResponse{
			Connections: ServerStats.wsConnections.Load(),
			Clients:     h.hub.ClientCount(),
			MessagesIn:  ServerStats.wsMessagesIn.Load(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Upstream: UpstreamStatsResponse{
			Fetches:  fetcherStats.UpstreamFetches,
			Failures: fetcherStats.UpstreamFailures,
		},
		Cache: CacheStatsResponse{
			Hits:   fetcherStats.CacheHits,
			Misses: fetcherStats.CacheMisses,
			Ratio:  ratio,
		},
		Metadata: MetadataStatsResponse{
			IsLoaded:   h.meta.IsReady(),
			LastUpdate: h.meta.LoadedAt(),
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(response)
}
