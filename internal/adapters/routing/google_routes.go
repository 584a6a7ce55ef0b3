package routing

import (
	"bytes"
	"context"
	"delivery-schedule-bot/internal/platform/obs"
	"delivery-schedule-bot/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Restricts the Routes API response to route data and geocoding results.
const routesFieldMask = "routes,geocodingResults.intermediates.intermediateWaypointRequestIndex"

type waypoint struct {
	Address string `json:"address"`
}

type computeRoutesRequest struct {
	Origin                waypoint   `json:"origin"`
	Destination           waypoint   `json:"destination"`
	Intermediates         []waypoint `json:"intermediates"`
	TravelMode            string     `json:"travelMode"`
	OptimizeWaypointOrder bool       `json:"optimizeWaypointOrder"`
}

type computeRoutesResponse struct {
	Routes []struct {
		OptimizedIntermediateWaypointIndex []int `json:"optimizedIntermediateWaypointIndex"`
	} `json:"routes"`
}

// OptimizeWaypointOrder asks the Routes API for a driving route through all
// intermediates with waypoint-order optimization and returns the optimized-index
// list of the first route.
func (g *GoogleMapsProvider) OptimizeWaypointOrder(
	ctx context.Context,
	origin string,
	destination string,
	intermediates []string,
) (_ []int, err error) {
	defer obs.Time(ctx, "google.OptimizeWaypointOrder")(&err)

	if origin == "" || destination == "" {
		return nil, errors.New("compute route: origin and destination must be non-empty")
	}
	if len(intermediates) == 0 {
		return nil, errors.New("compute route: intermediates must be non-empty")
	}

	bodyObj := computeRoutesRequest{
		Origin:                waypoint{Address: origin},
		Destination:           waypoint{Address: destination},
		Intermediates:         make([]waypoint, 0, len(intermediates)),
		TravelMode:            "DRIVE",
		OptimizeWaypointOrder: true,
	}
	for _, a := range intermediates {
		bodyObj.Intermediates = append(bodyObj.Intermediates, waypoint{Address: a})
	}

	payload, err := json.Marshal(bodyObj)
	if err != nil {
		return nil, fmt.Errorf("marshal compute routes request: %w", err)
	}

	resp, err := g.doWithRetry(ctx, "compute_routes", func() (*http.Request, error) {
		req, err := g.newRequest(ctx, http.MethodPost, g.routesURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Goog-Api-Key", g.apiKey)
		req.Header.Set("X-Goog-FieldMask", routesFieldMask)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("compute routes request failed: %w", err)
	}
	defer resp.Body.Close()

	var cr computeRoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode compute routes response: %w", err)
	}

	if len(cr.Routes) == 0 {
		return nil, ports.ErrNoRoute
	}

	order := cr.Routes[0].OptimizedIntermediateWaypointIndex
	if len(order) == 0 {
		return nil, ports.ErrNoWaypointOrder
	}

	return order, nil
}
