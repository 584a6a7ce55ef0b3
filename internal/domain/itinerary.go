package domain

import (
	"errors"
	"fmt"
)

// Outcome of an itinerary optimization.
// Optimized is false when the provider failed and the stops were kept in the
// order they were supplied; Reason then describes the failure.
type OptimizeResult struct {
	Itinerary []string
	Optimized bool
	Reason    string
}

// BuildItinerary returns start, the stops in the given order, then end.
func BuildItinerary(start, end string, stops []string) []string {
	out := make([]string, 0, len(stops)+2)
	out = append(out, start)
	out = append(out, stops...)
	out = append(out, end)
	return out
}

// ApplyWaypointOrder reorders stops by an optimized-index list.
//
// order[i] names the position in stops of the stop visited i-th, so the
// result is stops[order[0]], stops[order[1]], ... The list must be a
// permutation of 0..len(stops)-1.
func ApplyWaypointOrder(stops []string, order []int) ([]string, error) {
	if len(order) == 0 {
		return nil, errors.New("apply waypoint order: order is empty")
	}
	if len(order) != len(stops) {
		return nil, fmt.Errorf(
			"apply waypoint order: order has %d entries for %d stops",
			len(order), len(stops),
		)
	}

	seen := make([]bool, len(stops))
	out := make([]string, 0, len(stops))
	for i, idx := range order {
		if idx < 0 || idx >= len(stops) {
			return nil, fmt.Errorf("apply waypoint order: index %d at position %d out of range", idx, i)
		}
		if seen[idx] {
			return nil, fmt.Errorf("apply waypoint order: index %d repeated at position %d", idx, i)
		}
		seen[idx] = true
		out = append(out, stops[idx])
	}

	return out, nil
}
