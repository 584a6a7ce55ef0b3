package services

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/platform/metrics"
	"delivery-schedule-bot/internal/platform/obs"
	"delivery-schedule-bot/internal/ports"
	"errors"
	"fmt"
	"log"
	"time"
)

// RouteOptimizer turns collected stops into an itinerary.
//
// Optimize never fails: with no stops it returns [start, end] without calling
// the provider, and any provider failure degrades to the stops in the order
// they were supplied.
type RouteOptimizer struct {
	computer ports.RouteComputer
	timeout  time.Duration
}

func NewRouteOptimizer(computer ports.RouteComputer, timeout time.Duration) *RouteOptimizer {
	return &RouteOptimizer{
		computer: computer,
		timeout:  timeout,
	}
}

func (o *RouteOptimizer) Optimize(ctx context.Context, start, end string, stops []string) domain.OptimizeResult {
	if len(stops) == 0 {
		metrics.Optimizations.WithLabelValues("skipped").Inc()
		return domain.OptimizeResult{Itinerary: []string{start, end}, Optimized: true}
	}

	reordered, err := o.reorder(ctx, start, end, stops)
	if err != nil {
		metrics.Optimizations.WithLabelValues("fallback").Inc()
		log.Printf(
			"event_id=%s route optimization failed, keeping submitted order stops=%d err=%v",
			obs.EventID(ctx), len(stops), err,
		)
		return domain.OptimizeResult{
			Itinerary: domain.BuildItinerary(start, end, stops),
			Reason:    err.Error(),
		}
	}

	metrics.Optimizations.WithLabelValues("optimized").Inc()
	return domain.OptimizeResult{
		Itinerary: domain.BuildItinerary(start, end, reordered),
		Optimized: true,
	}
}

func (o *RouteOptimizer) reorder(ctx context.Context, start, end string, stops []string) (_ []string, err error) {
	defer obs.Time(ctx, "optimizer.Reorder")(&err)

	if o.computer == nil {
		return nil, errors.New("optimize: no route computer configured")
	}

	intermediates := make([]string, 0, len(stops))
	for _, s := range stops {
		intermediates = append(intermediates, domain.Qualify(s))
	}

	callCtx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	order, err := o.computer.OptimizeWaypointOrder(callCtx, domain.Qualify(start), domain.Qualify(end), intermediates)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	reordered, err := domain.ApplyWaypointOrder(stops, order)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	return reordered, nil
}
