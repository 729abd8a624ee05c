package heatmap

import (
	"sort"
	"strconv"
	"strings"
)

// serviceDayStart is the clock hour at which a transit service day
// begins. Slots before it belong to the previous service day and sort
// after hour 23 (a 04:00–27:00 logical day).
const serviceDayStart = 4

func serviceHour(slot string) int {
	h, err := strconv.Atoi(strings.SplitN(slot, ":", 2)[0])
	if err != nil {
		return 0
	}
	if h < serviceDayStart {
		h += 24
	}
	return h
}

// OrderSlots returns the distinct "HH:MM" labels sorted by service
// hour, with the literal label as a stable tie-break within the same
// hour. The input order never influences the result.
func OrderSlots(slots []string) []string {
	seen := make(map[string]struct{}, len(slots))
	ordered := make([]string, 0, len(slots))
	for _, s := range slots {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		ordered = append(ordered, s)
	}

	sort.Slice(ordered, func(i, j int) bool {
		hi, hj := serviceHour(ordered[i]), serviceHour(ordered[j])
		if hi != hj {
			return hi < hj
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}
