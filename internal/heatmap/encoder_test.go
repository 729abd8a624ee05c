package heatmap

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otboard/internal/domain"
)

// hslHue extracts the hue component from an "hsl(h, s%, l%)" color.
func hslHue(t *testing.T, color string) float64 {
	t.Helper()
	require.True(t, strings.HasPrefix(color, "hsl("), "not an hsl color: %s", color)
	inner := strings.TrimPrefix(color, "hsl(")
	hue, err := strconv.ParseFloat(inner[:strings.Index(inner, ",")], 64)
	require.NoError(t, err)
	return hue
}

func TestEncodePunctuality(t *testing.T) {
	th := domain.DefaultThresholds()

	tests := []struct {
		name      string
		total     int
		onTime    int
		wantHue   float64
		wantValue string
	}{
		{"all on time", 10, 10, 120, "100%"},
		{"half on time", 10, 5, 60, "50%"},
		{"none on time", 10, 0, 0, "0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &domain.StatRecord{Total: tt.total, OnTime: tt.onTime}
			cm := EncodeCell(rec, domain.ViewPunctuality, th)
			assert.Equal(t, tt.wantHue, hslHue(t, cm.Color))
			assert.Equal(t, tt.wantValue, cm.Value)
		})
	}
}

func TestEncodePunctualityHueMonotone(t *testing.T) {
	th := domain.DefaultThresholds()
	hue := func(onTime int) float64 {
		rec := &domain.StatRecord{Total: 100, OnTime: onTime}
		return hslHue(t, EncodeCell(rec, domain.ViewPunctuality, th).Color)
	}

	assert.Greater(t, hue(100), hue(50))
	assert.Greater(t, hue(50), hue(0))
}

func TestEncodeZeroTotalIsEmpty(t *testing.T) {
	th := domain.DefaultThresholds()
	rec := &domain.StatRecord{StopName: "Central", TimeSlot: "06:00"}

	for _, metric := range []domain.ViewMetric{domain.ViewPunctuality, domain.ViewMedian, domain.ViewStress} {
		cm := EncodeCell(rec, metric, th)
		assert.Equal(t, EmptyColor, cm.Color, "metric %s", metric)
		assert.Equal(t, "-", cm.Value, "metric %s", metric)
	}
}

func TestEncodeNilRecordIsEmpty(t *testing.T) {
	cm := EncodeCell(nil, domain.ViewPunctuality, domain.DefaultThresholds())
	assert.Equal(t, EmptyColor, cm.Color)
	assert.Equal(t, "-", cm.Value)
}

func TestEncodeMedian(t *testing.T) {
	th := domain.DefaultThresholds()

	tests := []struct {
		name    string
		p3      float64
		wantHue float64
	}{
		{"early median stays green", -30, 120},
		{"zero median is green", 0, 120},
		{"half critical", 150, 60},
		{"at critical", 300, 0},
		{"beyond critical clamps to red", 1200, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &domain.StatRecord{Total: 5, P3: tt.p3}
			cm := EncodeCell(rec, domain.ViewMedian, th)
			assert.Equal(t, tt.wantHue, hslHue(t, cm.Color))
		})
	}
}

func TestEncodeStressBands(t *testing.T) {
	th := domain.DefaultThresholds()
	encode := func(p1 float64) domain.CellMetric {
		rec := &domain.StatRecord{Total: 5, P1: p1}
		return EncodeCell(rec, domain.ViewStress, th)
	}

	assert.Equal(t, "hsl(120, 80%, 90%)", encode(10).Color, "below warn bound")
	assert.Equal(t, "hsl(60, 80%, 90%)", encode(100).Color, "between warn and late")

	// At the late threshold the ramp starts at full brightness and
	// saturates 600s later.
	assert.Equal(t, "rgba(255, 200, 200, 0.3)", encode(180).Color)
	assert.Equal(t, "rgba(255, 100, 100, 0.3)", encode(480).Color)
	assert.Equal(t, "rgba(255, 0, 0, 0.3)", encode(780).Color)
	assert.Equal(t, "rgba(255, 0, 0, 0.3)", encode(5000).Color, "past saturation clamps")
}

func TestEncodeTripDeviation(t *testing.T) {
	th := domain.DefaultThresholds()
	encode := func(delay float64) domain.CellMetric {
		rec := &domain.StatRecord{Kind: domain.RecordTrip, TripID: "t-1", Delay: delay}
		return EncodeCell(rec, domain.ViewTripDeviation, th)
	}

	tests := []struct {
		name      string
		delay     float64
		wantColor string
		wantValue string
	}{
		{"early trip is green", -120, tripGreenColor, "-2"},
		{"slightly late is yellow", 125, tripYellowColor, "+2"},
		{"late trip is red", 240, tripRedColor, "+4"},
		{"rounds to nearest minute", -40, tripGreenColor, "-1"},
		{"zero delay has no sign", 0, tripGreenColor, "0"},
		{"small positive still signed", 20, tripGreenColor, "+0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := encode(tt.delay)
			assert.Equal(t, tt.wantColor, cm.Color)
			assert.Equal(t, tt.wantValue, cm.Value)
		})
	}
}

func TestEncodeTripDeviationIgnoresTotal(t *testing.T) {
	// Trip records have no aggregate counts; the deviation encoding must
	// not fall into the empty-cell path.
	rec := &domain.StatRecord{Kind: domain.RecordTrip, TripID: "t-1", Delay: 60}
	cm := EncodeCell(rec, domain.ViewTripDeviation, domain.DefaultThresholds())
	assert.NotEqual(t, EmptyColor, cm.Color)
	assert.Equal(t, "+1", cm.Value)
}

func TestEncodeCustomThresholds(t *testing.T) {
	th := domain.Thresholds{Early: -30, Late: 60, Critical: 120}

	// Warning bound moves with the early threshold.
	rec := &domain.StatRecord{Total: 5, P1: 45}
	cm := EncodeCell(rec, domain.ViewStress, th)
	assert.Equal(t, "hsl(60, 80%, 90%)", cm.Color)

	// Median scale compresses with a lower critical threshold.
	rec = &domain.StatRecord{Total: 5, P3: 60}
	cm = EncodeCell(rec, domain.ViewMedian, th)
	assert.Equal(t, 60.0, hslHue(t, cm.Color))
}
