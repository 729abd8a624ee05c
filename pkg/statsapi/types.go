package statsapi

import (
	"encoding/json"
	"strconv"

	"otboard/internal/domain"
)

// Metadata is the initial dashboard metadata: available date range,
// line/route selectors and the merged server configuration.
type Metadata struct {
	DateRange DateRange              `json:"date_range"`
	Lines     map[string][]LineRoute `json:"lines"`
	Config    Config                 `json:"config"`
}

type DateRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

type LineRoute struct {
	Name string `json:"name"`
}

// Config is the threshold and preset configuration object served by the
// settings endpoints. The backend stores every value as text, so the
// threshold fields are strings here and parsed on demand.
type Config struct {
	ThresholdEarly    string              `json:"threshold_early"`
	ThresholdLate     string              `json:"threshold_late"`
	ThresholdCritical string              `json:"threshold_critical"`
	OutlierMin        string              `json:"outlier_min,omitempty"`
	OutlierMax        string              `json:"outlier_max,omitempty"`
	IgnoreOutliers    string              `json:"ignore_outliers,omitempty"`
	TimePresets       *domain.TimePresets `json:"time_presets,omitempty"`
}

// Thresholds parses the configured bounds, falling back to the shipped
// defaults for values that are missing or not numeric.
func (c Config) Thresholds() domain.Thresholds {
	th := domain.DefaultThresholds()
	if v, err := strconv.ParseFloat(c.ThresholdEarly, 64); err == nil {
		th.Early = v
	}
	if v, err := strconv.ParseFloat(c.ThresholdLate, 64); err == nil {
		th.Late = v
	}
	if v, err := strconv.ParseFloat(c.ThresholdCritical, 64); err == nil {
		th.Critical = v
	}
	return th
}

// KPIStats is the KPI tile payload: punctuality buckets plus
// cancellation statistics recomputed against the grand total.
type KPIStats struct {
	Stats             map[string]int     `json:"stats"`
	CancellationStats CancellationStats  `json:"cancellation_stats"`
	Percentages       map[string]float64 `json:"percentages"`
	Total             int                `json:"total"`
}

type CancellationStats struct {
	TotalCancelledTrips int     `json:"total_cancelled_trips"`
	CancellationRate    float64 `json:"cancellation_rate"`
}

// SeriesStats is the hourly/weekday chart payload: parallel arrays
// indexed by label position.
type SeriesStats struct {
	Labels   []string `json:"labels"`
	Datasets Datasets `json:"datasets"`
}

type Datasets struct {
	Early      []float64 `json:"early"`
	OnTime     []float64 `json:"on_time"`
	LateSlight []float64 `json:"late_slight"`
	LateSevere []float64 `json:"late_severe"`
}

// StopStat is one row of the problematic-stops ranking.
type StopStat struct {
	StopName        string  `json:"stop_name"`
	AvgDelaySeconds float64 `json:"avg_delay_seconds"`
	TotalTrips      int     `json:"total_trips"`
	PctEarly        float64 `json:"pct_early"`
	PctOnTime       float64 `json:"pct_on_time"`
	PctLateSlight   float64 `json:"pct_late_slight"`
	PctLateSevere   float64 `json:"pct_late_severe"`
}

// HeatmapResponse is the union of the three heatmap payload shapes:
// aggregated records in Data, the trip/pattern matrix form in
// Stops/Trips/Grid/XLabels, or a backend Error. Exactly which fields
// are populated depends on the requested granularity.
type HeatmapResponse struct {
	Data    []domain.StatRecord `json:"data,omitempty"`
	Stops   []string            `json:"stops,omitempty"`
	Trips   []TripInfo          `json:"trips,omitempty"`
	Grid    [][]*float64        `json:"grid,omitempty"`
	XLabels []string            `json:"x_labels,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// IsMatrix reports whether the response carries the matrix form.
func (r *HeatmapResponse) IsMatrix() bool {
	return len(r.Grid) > 0
}

// TripInfo describes one matrix column: an individual trip in trip
// mode, or a recurring schedule position in pattern mode (TripCount is
// then the number of trips aggregated into the column).
type TripInfo struct {
	ID        FlexID `json:"id"`
	Label     string `json:"label"`
	Date      string `json:"date,omitempty"`
	Vehicle   string `json:"vehicle,omitempty"`
	TripCount int    `json:"trip_count,omitempty"`
}

// FlexID tolerates backends emitting IDs as either JSON strings or
// numbers.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// LineStop is one entry of the per-line stop selector.
type LineStop struct {
	Value string `json:"value"`
}
