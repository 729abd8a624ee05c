package heatmap

import (
	"sort"

	"otboard/internal/domain"
)

// Matrix is a two-level lookup from stop name to slot key (time-slot
// label or trip ID) to the record for that cell. A missing key means
// "no data", which renders differently from a zero-valued cell.
type Matrix map[string]map[string]domain.StatRecord

// BuildMatrix projects a flat record list into a Matrix. The backend is
// assumed to pre-aggregate, so a key collision overwrites rather than
// merges. Pure: equal record sets yield equal matrices regardless of
// input order.
func BuildMatrix(records []domain.StatRecord) Matrix {
	matrix := make(Matrix)
	for _, rec := range records {
		key := rec.SlotKey()
		if rec.StopName == "" || key == "" {
			continue
		}
		row, ok := matrix[rec.StopName]
		if !ok {
			row = make(map[string]domain.StatRecord)
			matrix[rec.StopName] = row
		}
		row[key] = rec
	}
	return matrix
}

// Lookup returns the record for a stop/slot pair, if present.
func (m Matrix) Lookup(stop, slotKey string) (domain.StatRecord, bool) {
	row, ok := m[stop]
	if !ok {
		return domain.StatRecord{}, false
	}
	rec, ok := row[slotKey]
	return rec, ok
}

// Stops returns the stop names in lexicographic order.
func (m Matrix) Stops() []string {
	stops := make([]string, 0, len(m))
	for stop := range m {
		stops = append(stops, stop)
	}
	sort.Strings(stops)
	return stops
}

// SlotLabels returns the union of all slot keys, unordered.
func (m Matrix) SlotLabels() []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, row := range m {
		for key := range row {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			labels = append(labels, key)
		}
	}
	return labels
}
