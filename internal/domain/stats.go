package domain

import "encoding/json"

// RecordKind discriminates the two StatRecord shapes the backend emits.
type RecordKind int

const (
	// RecordAggregate is a per-stop, per-time-slot bucket with
	// punctuality counts and percentile delays.
	RecordAggregate RecordKind = iota
	// RecordTrip is a single observed trip with one delay value.
	RecordTrip
)

func (k RecordKind) String() string {
	switch k {
	case RecordAggregate:
		return "aggregate"
	case RecordTrip:
		return "trip"
	default:
		return "unknown"
	}
}

// StatRecord is one raw statistics record from the backend, either an
// aggregated time-slot bucket or an individual trip observation. Kind
// is derived on decode: records carrying a trip ID are trip records.
type StatRecord struct {
	Kind RecordKind `json:"-"`

	StopName string `json:"stop_name"`
	TimeSlot string `json:"time_slot,omitempty"`

	// Aggregate fields. Total = OnTime + Early + LateSlight + LateSevere.
	Total      int     `json:"total,omitempty"`
	OnTime     int     `json:"on_time,omitempty"`
	Early      int     `json:"early,omitempty"`
	LateSlight int     `json:"late_slight,omitempty"`
	LateSevere int     `json:"late_severe,omitempty"`
	P1         float64 `json:"p1,omitempty"`
	P3         float64 `json:"p3,omitempty"`
	AvgDelay   float64 `json:"avg_delay,omitempty"`

	// Trip fields. Delay is in seconds, negative = early.
	TripID  string  `json:"trip_id,omitempty"`
	Label   string  `json:"label,omitempty"`
	Date    string  `json:"date,omitempty"`
	Vehicle string  `json:"vehicle,omitempty"`
	Delay   float64 `json:"delay,omitempty"`
}

func (r *StatRecord) UnmarshalJSON(data []byte) error {
	type plain StatRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = StatRecord(p)
	if r.TripID != "" {
		r.Kind = RecordTrip
	} else {
		r.Kind = RecordAggregate
	}
	return nil
}

// SlotKey is the matrix column key: the trip ID for trip records, the
// time-slot label otherwise.
func (r StatRecord) SlotKey() string {
	if r.Kind == RecordTrip {
		return r.TripID
	}
	return r.TimeSlot
}

// ViewMetric selects the color/value encoding of a heatmap cell.
type ViewMetric string

const (
	ViewPunctuality   ViewMetric = "punctuality"
	ViewMedian        ViewMetric = "median"
	ViewStress        ViewMetric = "stress"
	ViewTripDeviation ViewMetric = "trip_deviation"
)

func (v ViewMetric) Valid() bool {
	switch v {
	case ViewPunctuality, ViewMedian, ViewStress, ViewTripDeviation:
		return true
	}
	return false
}

// CellMetric is the display encoding of a single heatmap cell. It is a
// pure function of a StatRecord, a ViewMetric and the thresholds; no
// state is kept between renders.
type CellMetric struct {
	Color string `json:"color"`
	Value string `json:"value"`
}

// Thresholds are the configurable delay bounds, in seconds. Early is
// negative (departure before schedule).
type Thresholds struct {
	Early    float64 `json:"threshold_early"`
	Late     float64 `json:"threshold_late"`
	Critical float64 `json:"threshold_critical"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Early: -60, Late: 180, Critical: 300}
}

// TimeWindow is a start/end pair of "HH:MM" labels.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimePresets are the configured quick time ranges.
type TimePresets struct {
	Morning *TimeWindow `json:"morning,omitempty"`
	Evening *TimeWindow `json:"evening,omitempty"`
}
