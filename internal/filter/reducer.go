// Package filter holds the dashboard filter state machine: a pure
// reducer from (Filter, Intent) to the next Filter, including the
// trip/pattern auto-switch rules and drill-down handling.
package filter

import (
	"log/slog"
	"strings"

	"otboard/internal/domain"
)

// Intent types. Intents arrive as JSON messages from clients; a single
// struct with a type tag keeps the wire format flat.
const (
	IntentSetMetric      = "set_metric"
	IntentSetDateRange   = "set_date_range"
	IntentSetTimeRange   = "set_time_range"
	IntentSetLine        = "set_line"
	IntentSetRoute       = "set_route"
	IntentSetStop        = "set_stop"
	IntentSetDayClass    = "set_day_class"
	IntentSetGranularity = "set_granularity"
	IntentApplyPreset    = "apply_preset"
	IntentDrillDown      = "drill_down"
	IntentDrillUp        = "drill_up"
)

// Preset names for IntentApplyPreset.
const (
	PresetMorning = "morning"
	PresetEvening = "evening"
	PresetDay     = "day"
)

// Intent is a named filter transition. Which fields are read depends on
// Type: range intents use From/To, selector intents use Value, and
// drill-down uses Label.
type Intent struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Label string `json:"label,omitempty"`
}

// Reducer applies intents to filter values. It holds no filter state
// itself, only a logger for rejected transitions.
type Reducer struct {
	logger *slog.Logger
}

func NewReducer(logger *slog.Logger) *Reducer {
	return &Reducer{logger: logger}
}

// Apply computes the next filter for an intent and normalizes it.
// Invalid intents leave the filter unchanged. Presets come from backend
// metadata; nil preset windows fall back to the hardcoded defaults.
func (r *Reducer) Apply(f domain.Filter, in Intent, presets domain.TimePresets) domain.Filter {
	switch in.Type {
	case IntentSetMetric:
		m := domain.Metric(in.Value)
		if !m.Valid() {
			r.logger.Warn("rejected metric", "value", in.Value)
			return f
		}
		f.Metric = m

	case IntentSetDateRange:
		f.DateFrom = in.From
		f.DateTo = in.To

	case IntentSetTimeRange:
		f.TimeFrom = in.From
		f.TimeTo = in.To

	case IntentSetLine:
		f.Line = in.Value
		f.Route = ""
		f.Stop = ""

	case IntentSetRoute:
		f.Route = in.Value
		f.Stop = ""

	case IntentSetStop:
		f.Stop = in.Value

	case IntentSetDayClass:
		f.DayClass = in.Value

	case IntentSetGranularity:
		g := domain.Granularity(in.Value)
		if !g.Valid() {
			r.logger.Warn("rejected granularity", "value", in.Value)
			return f
		}
		// Granularity chosen directly is never drill-down-scoped, so
		// any minute window from an earlier drill-down is dropped.
		f.Granularity = g
		f.TimeFrom = ""
		f.TimeTo = ""

	case IntentApplyPreset:
		f = applyPreset(f, in.Value, presets)

	case IntentDrillDown:
		next, ok := drillDown(f, in.Label)
		if !ok {
			r.logger.Warn("invalid drill-down label", "label", in.Label)
			return f
		}
		f = next

	case IntentDrillUp:
		if f.Granularity == domain.GranularityTrip {
			f.Granularity = domain.GranularityPattern
			f.TimeFrom = ""
			f.TimeTo = ""
		}

	default:
		r.logger.Warn("unknown intent", "type", in.Type)
		return f
	}

	return Normalize(f)
}

func applyPreset(f domain.Filter, preset string, presets domain.TimePresets) domain.Filter {
	f.TimeFrom = ""
	f.TimeTo = ""

	switch preset {
	case PresetDay:
		// Full day, bounds stay empty.
	case PresetMorning:
		if presets.Morning != nil {
			f.TimeFrom = presets.Morning.Start
			f.TimeTo = presets.Morning.End
		} else {
			f.TimeFrom = "06:00"
			f.TimeTo = "09:00"
		}
	case PresetEvening:
		if presets.Evening != nil {
			f.TimeFrom = presets.Evening.Start
			f.TimeTo = presets.Evening.End
		} else {
			f.TimeFrom = "16:00"
			f.TimeTo = "19:00"
		}
	}
	return f
}

// drillDown narrows a pattern view to the individual trips of one
// schedule minute. The label is "HH:MM", possibly with a trailing
// annotation like " (n=5)" which is stripped at the first space.
func drillDown(f domain.Filter, label string) (domain.Filter, bool) {
	if f.Granularity != domain.GranularityPattern {
		return f, false
	}

	clean, _, _ := strings.Cut(label, " ")
	hh, mm, ok := strings.Cut(clean, ":")
	if !ok || hh == "" || mm == "" {
		return f, false
	}

	f.Granularity = domain.GranularityTrip
	f.TimeFrom = hh + ":" + mm + ":00"
	f.TimeTo = hh + ":" + mm + ":59"
	return f, true
}

// Normalize applies the auto-switch invariant after every filter
// update. Per-trip data across a multi-day range is prohibitively large
// and not meaningful, so trip granularity falls back to pattern there,
// unless a drill-down pinned an explicit time window. A single-day
// range defaults to trip-level detail.
func Normalize(f domain.Filter) domain.Filter {
	if f.Granularity != domain.GranularityTrip && f.Granularity != domain.GranularityPattern {
		return f
	}

	span, ok := f.SpanDays()
	if !ok {
		return f
	}

	switch {
	case span > 0 && f.Granularity == domain.GranularityTrip && !f.HasTimeWindow():
		f.Granularity = domain.GranularityPattern
	case span == 0 && f.Granularity == domain.GranularityPattern:
		f.Granularity = domain.GranularityTrip
	}
	return f
}
