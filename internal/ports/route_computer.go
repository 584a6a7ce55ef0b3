package ports

import (
	"context"
	"errors"
)

var (
	// ErrNoRoute reports a successful response that carried no routes.
	ErrNoRoute = errors.New("no route returned")
	// ErrNoWaypointOrder reports a route without an optimized waypoint order.
	ErrNoWaypointOrder = errors.New("no optimized waypoint order returned")
)

// Contract for an external route computation with waypoint-order optimization.
type RouteComputer interface {
	// Return the optimized-index list for the intermediates: element i is the
	// position in intermediates of the waypoint visited i-th.
	OptimizeWaypointOrder(ctx context.Context, origin, destination string, intermediates []string) ([]int, error)
}
