package services

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/platform/metrics"
	"delivery-schedule-bot/internal/platform/obs"
	"delivery-schedule-bot/internal/ports"
	"errors"
	"log"
	"time"
)

// GeocodingClient resolves a stop address to coordinates.
//
// Every address is qualified with the region before lookup. Provider errors,
// timeouts, empty result sets and out-of-range coordinates all collapse into
// a not-found result; the caller never receives a malformed location.
type GeocodingClient struct {
	geocoder ports.Geocoder
	cache    ports.GeocodeCache
	timeout  time.Duration
}

// NewGeocodingClient wires a provider with an optional cache (nil disables caching).
func NewGeocodingClient(geocoder ports.Geocoder, cache ports.GeocodeCache, timeout time.Duration) *GeocodingClient {
	return &GeocodingClient{
		geocoder: geocoder,
		cache:    cache,
		timeout:  timeout,
	}
}

func (c *GeocodingClient) Geocode(ctx context.Context, address string) domain.GeocodeResult {
	res := domain.GeocodeResult{Address: address}

	key := domain.Qualify(address)
	if key == "" {
		metrics.Geocodes.WithLabelValues("not_found").Inc()
		return res
	}

	if c.cache != nil {
		hits, err := c.cache.GetMany(ctx, []string{key})
		if err != nil {
			log.Printf("event_id=%s geocode cache read failed address=%q err=%v", obs.EventID(ctx), key, err)
		} else if loc, ok := hits[key]; ok && loc.Valid() {
			metrics.Geocodes.WithLabelValues("cache_hit").Inc()
			res.Location = loc
			res.Found = true
			return res
		}
	}

	callCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	loc, err := c.geocoder.Geocode(callCtx, key)
	if err != nil {
		if errors.Is(err, ports.ErrAddressNotFound) {
			metrics.Geocodes.WithLabelValues("not_found").Inc()
		} else {
			metrics.Geocodes.WithLabelValues("error").Inc()
			log.Printf("event_id=%s geocode failed address=%q err=%v", obs.EventID(ctx), key, err)
		}
		return res
	}

	if !loc.Valid() {
		metrics.Geocodes.WithLabelValues("error").Inc()
		log.Printf("event_id=%s geocode returned invalid coordinates address=%q lat=%f lng=%f",
			obs.EventID(ctx), key, loc.Lat, loc.Lng)
		return res
	}

	if c.cache != nil {
		if err := c.cache.PutMany(ctx, map[string]domain.Coordinates{key: loc}); err != nil {
			log.Printf("event_id=%s geocode cache write failed address=%q err=%v", obs.EventID(ctx), key, err)
		}
	}

	metrics.Geocodes.WithLabelValues("resolved").Inc()
	res.Location = loc
	res.Found = true
	return res
}
