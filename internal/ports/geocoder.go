package ports

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"errors"
)

// ErrAddressNotFound reports that the provider returned no candidates for an address.
var ErrAddressNotFound = errors.New("address not found")

// Contract for resolving a single address to coordinates.
type Geocoder interface {
	// Return the first candidate location for the address, or ErrAddressNotFound.
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}
