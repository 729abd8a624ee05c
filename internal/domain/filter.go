package domain

import (
	"math"
	"net/url"
	"time"
)

// Metric selects which timestamp the deviation is computed against.
type Metric string

const (
	MetricArrival   Metric = "arrival"
	MetricDeparture Metric = "departure"
)

func (m Metric) Valid() bool {
	return m == MetricArrival || m == MetricDeparture
}

// Granularity is either a minute bucket size or one of the sentinel
// heatmap modes.
type Granularity string

const (
	Granularity15      Granularity = "15"
	Granularity30      Granularity = "30"
	Granularity60      Granularity = "60"
	GranularityTrip    Granularity = "trip"
	GranularityPattern Granularity = "pattern"
)

func (g Granularity) Valid() bool {
	switch g {
	case Granularity15, Granularity30, Granularity60, GranularityTrip, GranularityPattern:
		return true
	}
	return false
}

// IsBucket reports whether the granularity is a numeric minute bucket.
func (g Granularity) IsBucket() bool {
	switch g {
	case Granularity15, Granularity30, Granularity60:
		return true
	}
	return false
}

// Filter is the single source of truth for what data to request and how
// to display it. It is treated as an immutable value: every transition
// produces a full next Filter, never a partial mutation.
type Filter struct {
	DateFrom    string      `json:"date_from"`
	DateTo      string      `json:"date_to"`
	TimeFrom    string      `json:"time_from"`
	TimeTo      string      `json:"time_to"`
	Line        string      `json:"line"`
	Route       string      `json:"route"`
	Stop        string      `json:"stop"`
	DayClass    string      `json:"day_class"`
	Metric      Metric      `json:"metric"`
	Granularity Granularity `json:"granularity"`
}

// DefaultFilter is the initial state. Date bounds are populated
// asynchronously from backend metadata.
func DefaultFilter() Filter {
	return Filter{
		Metric:      MetricArrival,
		Granularity: Granularity60,
	}
}

const dateLayout = "2006-01-02"

// SpanDays returns the day span of the date range, rounded up, and
// whether both bounds parse as calendar dates. Equal dates span 0 days.
func (f Filter) SpanDays() (int, bool) {
	from, err := time.Parse(dateLayout, f.DateFrom)
	if err != nil {
		return 0, false
	}
	to, err := time.Parse(dateLayout, f.DateTo)
	if err != nil {
		return 0, false
	}
	diff := to.Sub(from)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24)), true
}

// HasTimeWindow reports whether an explicit time-of-day window is set.
func (f Filter) HasTimeWindow() bool {
	return f.TimeFrom != "" || f.TimeTo != ""
}

// Query encodes the filter into backend query parameters. The date
// bounds use the backend's short "from"/"to" aliases. Empty optional
// selectors are omitted.
func (f Filter) Query() url.Values {
	params := url.Values{}
	params.Set("from", f.DateFrom)
	params.Set("to", f.DateTo)
	params.Set("metric", string(f.Metric))
	params.Set("granularity", string(f.Granularity))

	if f.TimeFrom != "" {
		params.Set("time_from", f.TimeFrom)
	}
	if f.TimeTo != "" {
		params.Set("time_to", f.TimeTo)
	}
	if f.Line != "" {
		params.Set("line", f.Line)
	}
	if f.Route != "" {
		params.Set("route", f.Route)
	}
	if f.Stop != "" {
		params.Set("stop", f.Stop)
	}
	if f.DayClass != "" {
		params.Set("day_class", f.DayClass)
	}
	return params
}
