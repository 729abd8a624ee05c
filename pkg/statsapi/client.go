package statsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"otboard/internal/domain"
)

// Client talks to the external punctuality-statistics backend. All
// numerically hard work (bucketing, percentiles, classification)
// happens there; this client only moves filters out and payloads in.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Metadata fetches the dashboard metadata (date range, lines, config).
func (c *Client) Metadata(ctx context.Context) (*Metadata, error) {
	var meta Metadata
	if err := c.get(ctx, "/dashboard-metadata", nil, &meta); err != nil {
		return nil, fmt.Errorf("fetching metadata: %w", err)
	}
	return &meta, nil
}

// KPIStats fetches the KPI tile aggregates for a filter.
func (c *Client) KPIStats(ctx context.Context, f domain.Filter) (*KPIStats, error) {
	var kpi KPIStats
	if err := c.get(ctx, "/components/kpi-stats", f.Query(), &kpi); err != nil {
		return nil, fmt.Errorf("fetching kpi stats: %w", err)
	}
	return &kpi, nil
}

// HourlyStats fetches the per-hour punctuality series.
func (c *Client) HourlyStats(ctx context.Context, f domain.Filter) (*SeriesStats, error) {
	var series SeriesStats
	if err := c.get(ctx, "/stats/hourly", f.Query(), &series); err != nil {
		return nil, fmt.Errorf("fetching hourly stats: %w", err)
	}
	return &series, nil
}

// WeekdayStats fetches the per-weekday punctuality series.
func (c *Client) WeekdayStats(ctx context.Context, f domain.Filter) (*SeriesStats, error) {
	var series SeriesStats
	if err := c.get(ctx, "/stats/weekday", f.Query(), &series); err != nil {
		return nil, fmt.Errorf("fetching weekday stats: %w", err)
	}
	return &series, nil
}

// StopStats fetches the problematic-stops ranking.
func (c *Client) StopStats(ctx context.Context, f domain.Filter) ([]StopStat, error) {
	var stops []StopStat
	if err := c.get(ctx, "/stats/stops", f.Query(), &stops); err != nil {
		return nil, fmt.Errorf("fetching stop stats: %w", err)
	}
	return stops, nil
}

// Heatmap fetches the raw heatmap payload for a filter. The shape of
// the response depends on the filter's granularity; a backend-side
// failure arrives as a payload with Error set, not as an HTTP error.
func (c *Client) Heatmap(ctx context.Context, f domain.Filter) (*HeatmapResponse, error) {
	var resp HeatmapResponse
	if err := c.get(ctx, "/stats/heatmap", f.Query(), &resp); err != nil {
		return nil, fmt.Errorf("fetching heatmap: %w", err)
	}
	return &resp, nil
}

// LineStops fetches the stop selector entries for a line, optionally
// narrowed to one route.
func (c *Client) LineStops(ctx context.Context, line, route string) ([]LineStop, error) {
	params := url.Values{}
	if route != "" {
		params.Set("route", route)
	}
	var stops []LineStop
	if err := c.get(ctx, "/lines/"+url.PathEscape(line)+"/stops", params, &stops); err != nil {
		return nil, fmt.Errorf("fetching line stops: %w", err)
	}
	return stops, nil
}

// GetSettings fetches the current threshold/preset configuration.
func (c *Client) GetSettings(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.get(ctx, "/v1/settings", nil, &cfg); err != nil {
		return nil, fmt.Errorf("fetching settings: %w", err)
	}
	return &cfg, nil
}

// SaveSettings persists a new configuration on the backend.
func (c *Client) SaveSettings(ctx context.Context, cfg *Config) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/settings", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
