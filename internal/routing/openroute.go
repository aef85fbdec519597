package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/upstream"
	"go.uber.org/zap"
)

// DefaultProfile is the driving profile used when none is configured.
const DefaultProfile = "driving-car"

// Router computes a driving route between two coordinates.
type Router interface {
	// Route returns the distance and path from origin to destination.
	Route(ctx context.Context, origin, destination geo.Coordinate) (geo.RouteResult, error)
}

// directionsRequest is the POST body; each position is [lon, lat].
type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

// directionsResponse is the subset of the GeoJSON response we read.
type directionsResponse struct {
	Features []struct {
		Properties struct {
			Summary *struct {
				Distance *float64 `json:"distance"`
			} `json:"summary"`
		} `json:"properties"`
		Geometry *struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// OpenRouteRouter talks to an openrouteservice-compatible directions API.
type OpenRouteRouter struct {
	baseURL string
	apiKey  string
	profile string
	client  *upstream.Client
	logger  *zap.Logger
}

// NewOpenRouteRouter creates a new OpenRouteRouter.
func NewOpenRouteRouter(baseURL, apiKey, profile string, client *upstream.Client, logger *zap.Logger) *OpenRouteRouter {
	if profile == "" {
		profile = DefaultProfile
	}
	return &OpenRouteRouter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		profile: profile,
		client:  client,
		logger:  logger,
	}
}

// Route sends one directions request. Every failure, including a response
// missing the summary distance or geometry, is returned as an *upstream.Error.
func (r *OpenRouteRouter) Route(ctx context.Context, origin, destination geo.Coordinate) (geo.RouteResult, error) {
	body, err := json.Marshal(directionsRequest{
		Coordinates: [][2]float64{
			{origin.Lng, origin.Lat},
			{destination.Lng, destination.Lat},
		},
	})
	if err != nil {
		return geo.RouteResult{}, upstream.NewError(r.client.Name(), 0, err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", r.baseURL, r.profile)
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return geo.RouteResult{}, upstream.NewError(r.client.Name(), 0, err)
	}
	req.Header.Set("Authorization", r.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, application/geo+json")

	var resp directionsResponse
	if err := r.client.DoJSON(ctx, req, &resp); err != nil {
		return geo.RouteResult{}, err
	}

	route, err := r.toRouteResult(resp)
	if err != nil {
		r.logger.Warn("malformed routing response",
			zap.String("origin", origin.String()),
			zap.String("destination", destination.String()),
			zap.Error(err),
		)
		return geo.RouteResult{}, err
	}
	return route, nil
}

func (r *OpenRouteRouter) toRouteResult(resp directionsResponse) (geo.RouteResult, error) {
	if len(resp.Features) == 0 {
		return geo.RouteResult{}, upstream.NewError(r.client.Name(), 0, fmt.Errorf("response has no features"))
	}
	feature := resp.Features[0]
	if feature.Properties.Summary == nil || feature.Properties.Summary.Distance == nil {
		return geo.RouteResult{}, upstream.NewError(r.client.Name(), 0, fmt.Errorf("response has no summary distance"))
	}
	if feature.Geometry == nil {
		return geo.RouteResult{}, upstream.NewError(r.client.Name(), 0, fmt.Errorf("response has no geometry"))
	}

	// [lon, lat] on the wire, lat first internally
	path := make([]geo.Coordinate, 0, len(feature.Geometry.Coordinates))
	for i, pos := range feature.Geometry.Coordinates {
		if len(pos) < 2 {
			return geo.RouteResult{}, upstream.NewError(r.client.Name(), 0, fmt.Errorf("position %d has %d values", i, len(pos)))
		}
		path = append(path, geo.Coordinate{Lat: pos[1], Lng: pos[0]})
	}

	route, err := geo.NewRouteResult(*feature.Properties.Summary.Distance, path)
	if err != nil {
		return geo.RouteResult{}, upstream.NewError(r.client.Name(), 0, err)
	}
	return route, nil
}
