package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/upstream"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the upstream has no candidate for the query.
	ErrNotFound = errors.New("geocoding: no matching location")
	// ErrEmptyAddress is returned for blank input; no request is sent.
	ErrEmptyAddress = errors.New("geocoding: address is empty")
)

// Geocoder resolves addresses to coordinates and back.
type Geocoder interface {
	// Resolve returns the best match for a free-text address.
	Resolve(ctx context.Context, address string) (geo.Coordinate, error)

	// Reverse returns the formatted address closest to coord.
	Reverse(ctx context.Context, coord geo.Coordinate) (string, error)
}

// opencageResponse is the subset of the OpenCage JSON body we read.
type opencageResponse struct {
	Results []struct {
		Formatted string `json:"formatted"`
		Geometry  *struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

// OpenCageGeocoder talks to an OpenCage-compatible forward/reverse geocoding API.
type OpenCageGeocoder struct {
	baseURL string
	apiKey  string
	client  *upstream.Client
	logger  *zap.Logger
}

// NewOpenCageGeocoder creates a new OpenCageGeocoder.
func NewOpenCageGeocoder(baseURL, apiKey string, client *upstream.Client, logger *zap.Logger) *OpenCageGeocoder {
	return &OpenCageGeocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		logger:  logger,
	}
}

// Resolve sends one forward lookup and returns the first result's coordinate.
func (g *OpenCageGeocoder) Resolve(ctx context.Context, address string) (geo.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return geo.Coordinate{}, ErrEmptyAddress
	}

	resp, err := g.lookup(ctx, address, true)
	if err != nil {
		return geo.Coordinate{}, err
	}
	if len(resp.Results) == 0 {
		g.logger.Debug("no geocoding match", zap.String("address", address))
		return geo.Coordinate{}, ErrNotFound
	}

	first := resp.Results[0]
	if first.Geometry == nil || first.Geometry.Lat == nil || first.Geometry.Lng == nil {
		err := upstream.NewError(g.client.Name(), 0, fmt.Errorf("result without geometry"))
		g.logger.Warn("malformed geocoding result", zap.String("address", address), zap.Error(err))
		return geo.Coordinate{}, err
	}

	coord := geo.Coordinate{Lat: *first.Geometry.Lat, Lng: *first.Geometry.Lng}
	if !coord.IsValid() {
		err := upstream.NewError(g.client.Name(), 0, fmt.Errorf("coordinate out of range: %s", coord))
		g.logger.Warn("malformed geocoding result", zap.String("address", address), zap.Error(err))
		return geo.Coordinate{}, err
	}
	return coord, nil
}

// Reverse sends one "lat lng" lookup and returns the first result's formatted address.
func (g *OpenCageGeocoder) Reverse(ctx context.Context, coord geo.Coordinate) (string, error) {
	query := strconv.FormatFloat(coord.Lat, 'f', -1, 64) + " " + strconv.FormatFloat(coord.Lng, 'f', -1, 64)

	resp, err := g.lookup(ctx, query, false)
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 || strings.TrimSpace(resp.Results[0].Formatted) == "" {
		g.logger.Debug("no reverse geocoding match", zap.String("coordinate", coord.String()))
		return "", ErrNotFound
	}
	return resp.Results[0].Formatted, nil
}

func (g *OpenCageGeocoder) lookup(ctx context.Context, query string, single bool) (*opencageResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", g.apiKey)
	if single {
		params.Set("limit", "1")
	}
	endpoint := g.baseURL + "/geocode/v1/json?" + params.Encode()

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, upstream.NewError(g.client.Name(), 0, err)
	}
	req.Header.Set("Accept", "application/json")

	var resp opencageResponse
	if err := g.client.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
