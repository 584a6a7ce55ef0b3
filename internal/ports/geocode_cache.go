package ports

import (
	"context"
	"delivery-schedule-bot/internal/domain"
)

// Port: durable address -> coordinate cache in front of the Geocoder.
// Keys are qualified, whitespace-normalized addresses.
type GeocodeCache interface {
	// Return cached coordinates for the addresses that have an entry.
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	// Store address -> coordinate mappings.
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
