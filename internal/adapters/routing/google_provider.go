package routing

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// GoogleMapsProvider implements the Geocoder and RouteComputer ports using
// the Google Geocoding and Routes APIs.
//
// Addresses are sent exactly as given; qualification happens in the services
// layer. Every outbound request waits on a shared token bucket and is retried
// with backoff on transient failures.
//
// The provider is safe for concurrent use.
type GoogleMapsProvider struct {
	session    *http.Client
	apiKey     string
	geocodeURL string
	routesURL  string
	limiter    *rate.Limiter
}

// NewGoogleMapsProvider builds a provider allowing at most rps requests per
// second (burst of the same size). rps <= 0 disables limiting.
func NewGoogleMapsProvider(apiKey string, rps float64) (*GoogleMapsProvider, error) {
	if apiKey == "" {
		return nil, errors.New("google maps api key is empty")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	provider := &GoogleMapsProvider{
		session:    &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		geocodeURL: "https://maps.googleapis.com/maps/api/geocode/json",
		routesURL:  "https://routes.googleapis.com/directions/v2:computeRoutes",
		limiter:    limiter,
	}

	return provider, nil
}
