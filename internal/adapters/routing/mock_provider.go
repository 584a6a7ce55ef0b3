package routing

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/ports"
	"fmt"
	"sync"
)

type MockLocation struct {
	Address string
	Lat     float64
	Lng     float64
}

// MockGeocoder resolves a fixed set of addresses and reports every other
// address as not found. It records every address it was asked for.
type MockGeocoder struct {
	mu    sync.Mutex
	m     map[string]domain.Coordinates
	calls []string

	// Err, when set, is returned for every lookup.
	Err error
}

func NewMockGeocoder(locations []MockLocation) *MockGeocoder {
	m := make(map[string]domain.Coordinates, len(locations))
	for _, l := range locations {
		m[l.Address] = domain.Coordinates{Lat: l.Lat, Lng: l.Lng}
	}
	return &MockGeocoder{m: m}
}

func (g *MockGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, address)
	if g.Err != nil {
		return domain.Coordinates{}, g.Err
	}

	c, ok := g.m[address]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("mock geocode %q: %w", address, ports.ErrAddressNotFound)
	}
	return c, nil
}

func (g *MockGeocoder) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type MockRouteCall struct {
	Origin        string
	Destination   string
	Intermediates []string
}

// MockRouteComputer returns a fixed optimized-index list or error.
// When Gate is non-nil each call blocks until Gate is closed or ctx ends.
type MockRouteComputer struct {
	mu    sync.Mutex
	calls []MockRouteCall

	Order   []int
	Err     error
	Gate    chan struct{}
	Started chan struct{}
}

func (r *MockRouteComputer) OptimizeWaypointOrder(
	ctx context.Context,
	origin, destination string,
	intermediates []string,
) ([]int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, MockRouteCall{
		Origin:        origin,
		Destination:   destination,
		Intermediates: append([]string(nil), intermediates...),
	})
	r.mu.Unlock()

	if r.Started != nil {
		select {
		case r.Started <- struct{}{}:
		default:
		}
	}

	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if r.Err != nil {
		return nil, r.Err
	}
	return append([]int(nil), r.Order...), nil
}

func (r *MockRouteComputer) Calls() []MockRouteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MockRouteCall(nil), r.calls...)
}
