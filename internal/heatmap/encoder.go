package heatmap

import (
	"fmt"
	"math"

	"otboard/internal/domain"
)

// Cell colors. The aggregated empty color matches the page background;
// the matrix-form null color is one shade darker so gaps stay visible
// between colored trip columns.
const (
	EmptyColor      = "#f8fafc"
	NullCellColor   = "#f9fafb"
	tripGreenColor  = "#dcfce7"
	tripYellowColor = "#fef9c3"
	tripRedColor    = "#fee2e2"
)

// stressSaturationSpan is how far past the late threshold the stress
// alpha ramp runs before saturating.
const stressSaturationSpan = 600

// EncodeCell computes the display color and value for one heatmap cell.
// A nil record, or a zero-total aggregate under an aggregated metric,
// encodes as the fixed empty cell. Thresholds come from settings; the
// early threshold is negative, so -th.Early is the warning bound used
// by the stress and trip-deviation bands.
func EncodeCell(rec *domain.StatRecord, metric domain.ViewMetric, th domain.Thresholds) domain.CellMetric {
	if rec == nil {
		return domain.CellMetric{Color: EmptyColor, Value: "-"}
	}

	if metric == domain.ViewTripDeviation {
		return encodeTripDeviation(rec.Delay, th)
	}

	if rec.Total == 0 {
		return domain.CellMetric{Color: EmptyColor, Value: "-"}
	}

	switch metric {
	case domain.ViewPunctuality:
		rate := float64(rec.OnTime) / float64(rec.Total) * 100
		hue := clamp(rate/100*120, 0, 120)
		return domain.CellMetric{
			Color: fmt.Sprintf("hsl(%.0f, 70%%, 85%%)", hue),
			Value: fmt.Sprintf("%.0f%%", math.Round(rate)),
		}

	case domain.ViewMedian:
		val := rec.P3
		var hue float64
		switch {
		case val <= 0:
			hue = 120
		case val > th.Critical:
			hue = 0
		default:
			hue = 120 - (val/th.Critical)*120
		}
		return domain.CellMetric{
			Color: fmt.Sprintf("hsl(%.0f, 80%%, 90%%)", hue),
			Value: fmt.Sprintf("%.0fs", math.Round(val)),
		}

	case domain.ViewStress:
		return encodeStress(rec.P1, th)
	}

	return domain.CellMetric{Color: EmptyColor, Value: "-"}
}

func encodeStress(val float64, th domain.Thresholds) domain.CellMetric {
	value := fmt.Sprintf("%.0fs", math.Round(val))
	warn := -th.Early

	switch {
	case val < warn:
		return domain.CellMetric{Color: "hsl(120, 80%, 90%)", Value: value}
	case val < th.Late:
		return domain.CellMetric{Color: "hsl(60, 80%, 90%)", Value: value}
	default:
		intensity := clamp((val-th.Late)/stressSaturationSpan, 0, 1)
		c := 200 * (1 - intensity)
		return domain.CellMetric{
			Color: fmt.Sprintf("rgba(255, %.0f, %.0f, 0.3)", c, c),
			Value: value,
		}
	}
}

// encodeTripDeviation colors a single-trip delay in three fixed bands
// and displays signed minutes, rounded to nearest with ties away from
// zero. Positive delays carry an explicit "+" prefix.
func encodeTripDeviation(delay float64, th domain.Thresholds) domain.CellMetric {
	warn := -th.Early

	var color string
	switch {
	case delay < warn:
		color = tripGreenColor
	case delay < th.Late:
		color = tripYellowColor
	default:
		color = tripRedColor
	}

	minutes := int(math.Round(delay / 60))
	value := fmt.Sprintf("%d", minutes)
	if delay > 0 {
		value = fmt.Sprintf("+%d", minutes)
	}
	return domain.CellMetric{Color: color, Value: value}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
