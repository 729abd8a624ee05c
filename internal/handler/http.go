package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"otboard/internal/domain"
	"otboard/internal/filter"
	"otboard/internal/hub"
	"otboard/internal/meta"
	"otboard/internal/panel"
	"otboard/internal/session"
	"otboard/pkg/statsapi"
)

// DashboardHandler serves the REST mirror of the panel pipeline for
// clients that do not hold a WebSocket session. Each request parses a
// filter from query parameters, normalizes it and fetches one panel;
// failures stay scoped to that panel.
type DashboardHandler struct {
	fetcher *panel.Fetcher
	meta    *meta.Store
	api     *statsapi.Client
	hub     *hub.Hub
	logger  *slog.Logger
}

func NewDashboardHandler(fetcher *panel.Fetcher, metaStore *meta.Store, api *statsapi.Client, wsHub *hub.Hub, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		fetcher: fetcher,
		meta:    metaStore,
		api:     api,
		hub:     wsHub,
		logger:  logger.With("handler", "dashboard"),
	}
}

func (h *DashboardHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	m := h.meta.Get()
	if m == nil {
		respondError(w, http.StatusServiceUnavailable, "metadata not loaded yet")
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *DashboardHandler) GetKPI(w http.ResponseWriter, r *http.Request) {
	h.servePanel(w, r, panel.KPI)
}

func (h *DashboardHandler) GetHourly(w http.ResponseWriter, r *http.Request) {
	h.servePanel(w, r, panel.Hourly)
}

func (h *DashboardHandler) GetWeekday(w http.ResponseWriter, r *http.Request) {
	h.servePanel(w, r, panel.Weekday)
}

func (h *DashboardHandler) GetStops(w http.ResponseWriter, r *http.Request) {
	h.servePanel(w, r, panel.Stops)
}

func (h *DashboardHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	h.servePanel(w, r, panel.Heatmap)
}

func (h *DashboardHandler) servePanel(w http.ResponseWriter, r *http.Request, name string) {
	f, err := h.parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	view := domain.ViewMetric(r.URL.Query().Get("view"))
	if !view.Valid() {
		view = domain.ViewPunctuality
	}

	payload, err := h.fetcher.Fetch(r.Context(), name, f, view)
	if err != nil {
		if errors.Is(err, panel.ErrRouteRequired) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("panel fetch failed", "panel", name, "error", err)
		respondError(w, http.StatusBadGateway, "upstream fetch failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *DashboardHandler) GetLineStops(w http.ResponseWriter, r *http.Request) {
	line := r.PathValue("line")
	if line == "" {
		respondError(w, http.StatusBadRequest, "missing line parameter")
		return
	}

	stops, err := h.fetcher.LineStops(r.Context(), line, r.URL.Query().Get("route"))
	if err != nil {
		h.logger.Error("line stops fetch failed", "line", line, "error", err)
		respondError(w, http.StatusBadGateway, "upstream fetch failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stops)
}

func (h *DashboardHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.api.GetSettings(r.Context())
	if err != nil {
		h.logger.Error("settings fetch failed", "error", err)
		respondError(w, http.StatusBadGateway, "upstream fetch failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// SaveSettings persists the configuration upstream, then propagates it:
// the metadata store picks up the new thresholds, cached panels built
// with the old ones are dropped, and connected clients get a config
// broadcast.
func (h *DashboardHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var cfg statsapi.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid settings payload: "+err.Error())
		return
	}

	if err := h.api.SaveSettings(r.Context(), &cfg); err != nil {
		h.logger.Error("settings save failed", "error", err)
		respondError(w, http.StatusBadGateway, "upstream save failed: "+err.Error())
		return
	}

	h.meta.UpdateConfig(cfg)
	h.fetcher.Invalidate(r.Context())
	h.broadcastConfig(cfg)

	respondJSON(w, http.StatusOK, cfg)
}

func (h *DashboardHandler) broadcastConfig(cfg statsapi.Config) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	frame, err := json.Marshal(session.Frame{Type: session.FrameConfig, Payload: payload})
	if err != nil {
		return
	}
	h.hub.Broadcast(frame)
}

// parseFilter builds a filter from query parameters on top of the
// default view (full metadata date range), then normalizes it through
// the reducer's auto-switch rules.
func (h *DashboardHandler) parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()

	f := domain.DefaultFilter()
	if dateRange, ok := h.meta.DateRange(); ok {
		f.DateFrom = dateRange.Min
		f.DateTo = dateRange.Max
	}

	if v := q.Get("from"); v != "" {
		f.DateFrom = v
	}
	if v := q.Get("to"); v != "" {
		f.DateTo = v
	}
	f.TimeFrom = q.Get("time_from")
	f.TimeTo = q.Get("time_to")
	f.Line = q.Get("line")
	f.Route = q.Get("route")
	f.Stop = q.Get("stop")
	f.DayClass = q.Get("day_class")

	if v := q.Get("metric"); v != "" {
		m := domain.Metric(v)
		if !m.Valid() {
			return f, errors.New("invalid metric: must be arrival or departure")
		}
		f.Metric = m
	}
	if v := q.Get("granularity"); v != "" {
		g := domain.Granularity(v)
		if !g.Valid() {
			return f, errors.New("invalid granularity: must be 15, 30, 60, trip or pattern")
		}
		f.Granularity = g
	}

	return filter.Normalize(f), nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
