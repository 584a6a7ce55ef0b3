package routing

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/platform/obs"
	"delivery-schedule-bot/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves one address with the Geocoding API and returns the first
// candidate. ZERO_RESULTS maps to ports.ErrAddressNotFound.
func (g *GoogleMapsProvider) Geocode(ctx context.Context, address string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "google.Geocode")(&err)

	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Coordinates{}, errors.New("geocode: address must be non-empty")
	}

	resp, err := g.doWithRetry(ctx, "geocode", func() (*http.Request, error) {
		req, err := g.newRequest(ctx, http.MethodGet, g.geocodeURL, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("address", address)
		q.Set("key", g.apiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: decode response: %w", address, err)
	}

	switch decoded.Status {
	case "OK":
	case "ZERO_RESULTS":
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, ports.ErrAddressNotFound)
	default:
		return domain.Coordinates{}, fmt.Errorf(
			"geocode %q: status %s: %s",
			address, decoded.Status, decoded.ErrorMessage,
		)
	}

	if len(decoded.Results) == 0 {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, ports.ErrAddressNotFound)
	}

	loc := decoded.Results[0].Geometry.Location
	return domain.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
}
