// Package session ties one connected client to its filter state. Every
// filter change fans the independent panel fetches out in parallel and
// tags them with a generation counter, so a slow stale response can
// never overwrite data from a newer filter.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"otboard/internal/domain"
	"otboard/internal/filter"
	"otboard/internal/hub"
	"otboard/internal/meta"
	"otboard/internal/panel"
)

// Frame types pushed to the client.
const (
	FrameFilter     = "filter"
	FramePanel      = "panel"
	FramePanelError = "panel_error"
	FrameConfig     = "config"
	FramePong       = "pong"
)

// Frame is one message on the client's send channel.
type Frame struct {
	Type    string          `json:"type"`
	Panel   string          `json:"panel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PanelFetcher resolves a panel's payload for a filter.
type PanelFetcher interface {
	Fetch(ctx context.Context, p string, f domain.Filter, view domain.ViewMetric) (any, error)
}

// Session owns the filter of one connected client. All updates run
// through the pure reducer, so rapid-fire intents serialize into whole
// filter replacements without partial writes.
type Session struct {
	client  *hub.Client
	fetcher PanelFetcher
	reducer *filter.Reducer
	meta    *meta.Store
	logger  *slog.Logger

	mu         sync.Mutex
	filter     domain.Filter
	view       domain.ViewMetric
	generation uint64
	results    map[string][]byte
}

func New(client *hub.Client, fetcher PanelFetcher, metaStore *meta.Store, logger *slog.Logger) *Session {
	f := domain.DefaultFilter()
	if dateRange, ok := metaStore.DateRange(); ok {
		f.DateFrom = dateRange.Min
		f.DateTo = dateRange.Max
		f = filter.Normalize(f)
	}

	return &Session{
		client:  client,
		fetcher: fetcher,
		reducer: filter.NewReducer(logger),
		meta:    metaStore,
		logger:  logger,
		filter:  f,
		view:    domain.ViewPunctuality,
		results: make(map[string][]byte),
	}
}

// Filter returns the current filter value.
func (s *Session) Filter() domain.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Start announces the initial filter state to the client.
func (s *Session) Start() {
	s.pushFilter(s.Filter())
}

// HandleIntent applies one filter intent. When the filter actually
// changes, the subscribed panels are refreshed under a new generation.
func (s *Session) HandleIntent(ctx context.Context, in filter.Intent) {
	s.mu.Lock()
	next := s.reducer.Apply(s.filter, in, s.meta.Presets())
	changed := next != s.filter
	s.filter = next
	if changed {
		s.generation++
	}
	gen := s.generation
	view := s.view
	s.mu.Unlock()

	s.pushFilter(next)
	if changed {
		go s.refresh(ctx, gen, next, view, s.client.Panels())
	}
}

// SetViewMetric switches the heatmap cell encoding. Only the heatmap
// panel is re-shaped; the other panels do not depend on the view
// metric.
func (s *Session) SetViewMetric(ctx context.Context, value string) {
	view := domain.ViewMetric(value)
	if !view.Valid() {
		s.logger.Warn("rejected view metric", "value", value)
		return
	}

	s.mu.Lock()
	if view == s.view {
		s.mu.Unlock()
		return
	}
	s.view = view
	gen := s.generation
	f := s.filter
	s.mu.Unlock()

	if s.client.HasPanel(panel.Heatmap) {
		go s.refresh(ctx, gen, f, view, []string{panel.Heatmap})
	}
}

// Subscribe adds panels to the client's view. Cached payloads are
// replayed immediately; panels without one are fetched.
func (s *Session) Subscribe(ctx context.Context, panels []string) {
	known := make([]string, 0, len(panels))
	for _, p := range panels {
		if panel.Known(p) {
			known = append(known, p)
		}
	}
	if len(known) == 0 {
		return
	}
	s.client.AddPanels(known)

	s.mu.Lock()
	gen := s.generation
	f := s.filter
	view := s.view
	var missing []string
	var replay [][]byte
	for _, p := range known {
		if frame, ok := s.results[p]; ok {
			replay = append(replay, frame)
		} else {
			missing = append(missing, p)
		}
	}
	s.mu.Unlock()

	for _, frame := range replay {
		s.client.Push(frame)
	}
	if len(missing) > 0 {
		go s.refresh(ctx, gen, f, view, missing)
	}
}

// Unsubscribe removes panels from the client's view.
func (s *Session) Unsubscribe(panels []string) {
	s.client.RemovePanels(panels)
}

// refresh fetches the given panels in parallel (they are mutually
// independent) and delivers each result, unless a newer generation has
// superseded this one by the time it completes.
func (s *Session) refresh(ctx context.Context, gen uint64, f domain.Filter, view domain.ViewMetric, panels []string) {
	var wg sync.WaitGroup
	for _, p := range panels {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()

			payload, err := s.fetcher.Fetch(ctx, p, f, view)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				s.logger.Warn("panel fetch failed", "panel", p, "error", err)
				s.deliver(gen, view, p, Frame{Type: FramePanelError, Panel: p, Error: err.Error()})
				return
			}

			data, err := json.Marshal(payload)
			if err != nil {
				s.logger.Error("panel payload marshal failed", "panel", p, "error", err)
				return
			}
			s.deliver(gen, view, p, Frame{Type: FramePanel, Panel: p, Payload: data})
		}(p)
	}
	wg.Wait()
}

// deliver stores and pushes a panel frame if its generation is still
// the current one. Stale completions are dropped. Heatmap frames are
// additionally stamped with the view metric they were encoded under:
// a view switch does not bump the generation (the filter is
// unchanged), so an in-flight fetch from the previous view would
// otherwise land after the switch and overwrite the fresh encoding.
func (s *Session) deliver(gen uint64, view domain.ViewMetric, p string, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("frame marshal failed", "panel", p, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Debug("discarding stale panel result", "panel", p, "generation", gen, "current", s.generation)
		return
	}
	if p == panel.Heatmap && view != s.view {
		s.logger.Debug("discarding heatmap result for superseded view", "view", view, "current", s.view)
		return
	}
	s.results[p] = data
	s.client.Push(data)
}

func (s *Session) pushFilter(f domain.Filter) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	data, err := json.Marshal(Frame{Type: FrameFilter, Payload: payload})
	if err != nil {
		return
	}
	s.client.Push(data)
}
