package flow

import (
	"fmt"
	"sort"

	"garment-flow/internal/storage"
)

// FinalStep returns the step with the highest sequence number. The bool is
// false for an empty route.
func FinalStep(route *storage.Route) (storage.Step, bool) {
	if route == nil || len(route.Steps) == 0 {
		return storage.Step{}, false
	}

	final := route.Steps[0]
	for _, s := range route.Steps[1:] {
		if s.SNo > final.SNo {
			final = s
		}
	}
	return final, true
}

// ResolveRoute orders the steps of a route and checks that sequence numbers
// run 1..n without gaps or repeats.
func ResolveRoute(route *storage.Route) ([]storage.Step, error) {
	const op = "service.flow.ResolveRoute"

	if route == nil {
		return nil, fmt.Errorf("%s: nil route: %w", op, ErrCorruptRoute)
	}

	steps := make([]storage.Step, len(route.Steps))
	copy(steps, route.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].SNo < steps[j].SNo })

	for i, s := range steps {
		if s.SNo != i+1 {
			return nil, fmt.Errorf("%s: route %s: expected step %d, got %d: %w", op, route.ID, i+1, s.SNo, ErrCorruptRoute)
		}
	}

	return steps, nil
}

func isFinal(route *storage.Route, sNo int) bool {
	final, ok := FinalStep(route)
	return ok && final.SNo == sNo
}
