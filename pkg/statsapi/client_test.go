package statsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otboard/internal/domain"
)

func TestKPIStatsQueryEncoding(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stats":{"on_time":40},"total":50}`))
	}))
	defer srv.Close()

	f := domain.DefaultFilter()
	f.DateFrom = "2025-11-03"
	f.DateTo = "2025-11-09"
	f.Line = "12"
	f.Route = "12A"

	c := New(srv.URL)
	kpi, err := c.KPIStats(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, "/components/kpi-stats", gotPath)
	assert.Equal(t, []string{"2025-11-03"}, gotQuery["from"])
	assert.Equal(t, []string{"2025-11-09"}, gotQuery["to"])
	assert.Equal(t, []string{"arrival"}, gotQuery["metric"])
	assert.Equal(t, []string{"60"}, gotQuery["granularity"])
	assert.Equal(t, []string{"12"}, gotQuery["line"])
	assert.NotContains(t, gotQuery, "stop", "empty selectors stay out of the query")
	assert.NotContains(t, gotQuery, "time_from")

	assert.Equal(t, 50, kpi.Total)
	assert.Equal(t, 40, kpi.Stats["on_time"])
}

func TestHeatmapDecodesAggregatedForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"stop_name":"Central","time_slot":"06:00","total":10,"on_time":8,"p1":20,"p3":45},
			{"stop_name":"Central","trip_id":"t-7","delay":-30}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Heatmap(context.Background(), domain.DefaultFilter())
	require.NoError(t, err)
	require.False(t, resp.IsMatrix())
	require.Len(t, resp.Data, 2)

	// Kind is derived from the presence of a trip ID.
	assert.Equal(t, domain.RecordAggregate, resp.Data[0].Kind)
	assert.Equal(t, "06:00", resp.Data[0].SlotKey())
	assert.Equal(t, domain.RecordTrip, resp.Data[1].Kind)
	assert.Equal(t, "t-7", resp.Data[1].SlotKey())
}

func TestHeatmapDecodesMatrixForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"stops":["Central","Harbor"],
			"trips":[{"id":101,"label":"06:30","date":"2025-11-03"},{"id":"p-2","label":"07:00","trip_count":4}],
			"grid":[[30,null],[null,-45.5]],
			"x_labels":["06:30 (n=1)","07:00 (n=4)"]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Heatmap(context.Background(), domain.DefaultFilter())
	require.NoError(t, err)
	require.True(t, resp.IsMatrix())

	// Numeric and string trip IDs both decode.
	assert.Equal(t, FlexID("101"), resp.Trips[0].ID)
	assert.Equal(t, FlexID("p-2"), resp.Trips[1].ID)

	require.Len(t, resp.Grid, 2)
	require.NotNil(t, resp.Grid[0][0])
	assert.Equal(t, 30.0, *resp.Grid[0][0])
	assert.Nil(t, resp.Grid[0][1])
	assert.Equal(t, -45.5, *resp.Grid[1][1])
}

func TestLineStopsEscapesPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"value":"Central"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	stops, err := c.LineStops(context.Background(), "M/4", "")
	require.NoError(t, err)
	assert.Equal(t, "/lines/M%2F4/stops", gotPath)
	require.Len(t, stops, 1)
	assert.Equal(t, "Central", stops[0].Value)
}

func TestGetReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Metadata(context.Background())
	assert.ErrorContains(t, err, "502")
}

func TestConfigThresholdsParsing(t *testing.T) {
	cfg := Config{
		ThresholdEarly:    "-90",
		ThresholdLate:     "120",
		ThresholdCritical: "not-a-number",
	}

	th := cfg.Thresholds()
	assert.Equal(t, -90.0, th.Early)
	assert.Equal(t, 120.0, th.Late)
	assert.Equal(t, domain.DefaultThresholds().Critical, th.Critical,
		"unparsable values fall back to defaults")
}
