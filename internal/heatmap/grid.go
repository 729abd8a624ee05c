package heatmap

import (
	"fmt"

	"otboard/internal/domain"
	"otboard/pkg/statsapi"
)

// Grid mode values.
const (
	ModeSlots  = "slots"
	ModeMatrix = "matrix"
)

// Cell is one render-ready grid cell. Stats carries the raw record for
// tooltips; it is nil for cells with no data.
type Cell struct {
	Color string             `json:"color"`
	Value string             `json:"value"`
	Stats *domain.StatRecord `json:"stats,omitempty"`
}

// Column describes one grid column. DrillLabel is set only on pattern
// columns and is the exact label a client passes back in a drill-down
// intent.
type Column struct {
	Label      string `json:"label"`
	DrillLabel string `json:"drill_label,omitempty"`
	TripID     string `json:"trip_id,omitempty"`
	Date       string `json:"date,omitempty"`
	Vehicle    string `json:"vehicle,omitempty"`
	TripCount  int    `json:"trip_count,omitempty"`
}

// Grid is the dense, render-ready model built from a sparse heatmap
// payload: Rows[i][j] is the cell for Stops[i] at Columns[j].
type Grid struct {
	Mode       string            `json:"mode"`
	Metric     domain.ViewMetric `json:"metric"`
	Stops      []string          `json:"stops"`
	Columns    []Column          `json:"columns"`
	Rows       [][]Cell          `json:"rows"`
	TotalTrips int               `json:"total_trips,omitempty"`
}

// Build shapes a heatmap payload into a Grid. Matrix-form payloads
// (trip and pattern granularity) use the trip-deviation encoding;
// aggregated payloads use the requested view metric. A payload with a
// backend error, or a malformed matrix, yields an error rather than a
// partial grid.
func Build(resp *statsapi.HeatmapResponse, f domain.Filter, metric domain.ViewMetric, th domain.Thresholds) (*Grid, error) {
	if resp == nil {
		return nil, fmt.Errorf("no heatmap payload")
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("backend error: %s", resp.Error)
	}
	if resp.IsMatrix() {
		return buildMatrixGrid(resp, f, th)
	}
	return buildSlotGrid(resp, metric, th)
}

func buildSlotGrid(resp *statsapi.HeatmapResponse, metric domain.ViewMetric, th domain.Thresholds) (*Grid, error) {
	matrix := BuildMatrix(resp.Data)

	slotLabels := make([]string, 0, len(resp.Data))
	totalTrips := 0
	for _, rec := range resp.Data {
		if rec.Kind != domain.RecordAggregate {
			continue
		}
		slotLabels = append(slotLabels, rec.TimeSlot)
		totalTrips += rec.Total
	}
	slots := OrderSlots(slotLabels)

	stops := resp.Stops
	if len(stops) == 0 {
		stops = matrix.Stops()
	}

	columns := make([]Column, len(slots))
	for i, slot := range slots {
		columns[i] = Column{Label: slot}
	}

	rows := make([][]Cell, len(stops))
	for i, stop := range stops {
		row := make([]Cell, len(slots))
		for j, slot := range slots {
			if rec, ok := matrix.Lookup(stop, slot); ok {
				cm := EncodeCell(&rec, metric, th)
				row[j] = Cell{Color: cm.Color, Value: cm.Value, Stats: &rec}
			} else {
				cm := EncodeCell(nil, metric, th)
				row[j] = Cell{Color: cm.Color, Value: cm.Value}
			}
		}
		rows[i] = row
	}

	return &Grid{
		Mode:       ModeSlots,
		Metric:     metric,
		Stops:      stops,
		Columns:    columns,
		Rows:       rows,
		TotalTrips: totalTrips,
	}, nil
}

func buildMatrixGrid(resp *statsapi.HeatmapResponse, f domain.Filter, th domain.Thresholds) (*Grid, error) {
	width := len(resp.Grid[0])
	for i, row := range resp.Grid {
		if len(row) != width {
			return nil, fmt.Errorf("ragged grid: row %d has %d cells, want %d", i, len(row), width)
		}
	}

	stops := resp.Stops
	if len(stops) == 0 {
		stops = make([]string, len(resp.Grid))
		for i := range stops {
			stops[i] = fmt.Sprintf("Stop %d", i+1)
		}
	}
	if len(stops) != len(resp.Grid) {
		return nil, fmt.Errorf("stop count %d does not match grid rows %d", len(stops), len(resp.Grid))
	}

	isPattern := f.Granularity == domain.GranularityPattern

	columns := make([]Column, width)
	for j := 0; j < width; j++ {
		var info statsapi.TripInfo
		if j < len(resp.Trips) {
			info = resp.Trips[j]
		} else {
			info.Label = fmt.Sprintf("%d", j+1)
		}

		// The time label drives drill-down; x_labels wins over the
		// trip label when present.
		timeLabel := info.Label
		if j < len(resp.XLabels) && resp.XLabels[j] != "" {
			timeLabel = resp.XLabels[j]
		}

		col := Column{
			Label:     timeLabel,
			TripID:    string(info.ID),
			Date:      info.Date,
			Vehicle:   info.Vehicle,
			TripCount: info.TripCount,
		}
		if isPattern {
			col.DrillLabel = timeLabel
		} else if info.Date != "" {
			// Trip mode shows one column per observed trip, headed by
			// its date rather than the repeated time.
			col.Label = info.Date
		}
		columns[j] = col
	}

	rows := make([][]Cell, len(resp.Grid))
	for i, gridRow := range resp.Grid {
		row := make([]Cell, width)
		for j, val := range gridRow {
			if val == nil {
				row[j] = Cell{Color: NullCellColor, Value: "."}
				continue
			}
			rec := domain.StatRecord{
				Kind:     domain.RecordTrip,
				StopName: stops[i],
				Delay:    *val,
			}
			cm := EncodeCell(&rec, domain.ViewTripDeviation, th)
			row[j] = Cell{Color: cm.Color, Value: cm.Value, Stats: &rec}
		}
		rows[i] = row
	}

	return &Grid{
		Mode:    ModeMatrix,
		Metric:  domain.ViewTripDeviation,
		Stops:   stops,
		Columns: columns,
		Rows:    rows,
	}, nil
}
