package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"otboard/internal/domain"
)

func TestPanelKeyStableForEqualFilters(t *testing.T) {
	a := domain.DefaultFilter()
	a.DateFrom = "2025-11-03"
	a.DateTo = "2025-11-09"
	a.Line = "12"

	b := domain.DefaultFilter()
	b.Line = "12"
	b.DateTo = "2025-11-09"
	b.DateFrom = "2025-11-03"

	assert.Equal(t, PanelKey("kpi", a), PanelKey("kpi", b))
}

func TestPanelKeyDistinguishesPanelsAndFilters(t *testing.T) {
	f := domain.DefaultFilter()
	f.DateFrom = "2025-11-03"
	f.DateTo = "2025-11-09"

	assert.NotEqual(t, PanelKey("kpi", f), PanelKey("hourly", f))

	g := f
	g.Route = "12A"
	assert.NotEqual(t, PanelKey("kpi", f), PanelKey("kpi", g))
}

func TestLineStopsKeySeparatesFields(t *testing.T) {
	// The separator byte keeps ("ab","c") and ("a","bc") apart.
	assert.NotEqual(t, LineStopsKey("ab", "c"), LineStopsKey("a", "bc"))
	assert.Equal(t, LineStopsKey("12", "12A"), LineStopsKey("12", "12A"))
}
