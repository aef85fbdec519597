package geo

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain"
)

// Coordinate is a WGS84 position in degrees, latitude first.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsValid returns true if the coordinate lies within WGS84 bounds.
func (c Coordinate) IsValid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) &&
		c.Lat >= -90 && c.Lat <= 90 &&
		c.Lng >= -180 && c.Lng <= 180
}

// String renders the coordinate as "lat,lng".
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// RouteResult is a value object representing the driving route between pickup and drop.
type RouteResult struct {
	DistanceKm float64      `json:"distance_km"`
	Path       []Coordinate `json:"path"`
}

// NewRouteResult builds a RouteResult from an upstream distance in meters and a lat-first path.
func NewRouteResult(distanceMeters float64, path []Coordinate) (RouteResult, error) {
	if math.IsNaN(distanceMeters) || distanceMeters <= 0 {
		return RouteResult{}, domain.NewValidationError(fmt.Sprintf("route distance must be positive, got %v", distanceMeters))
	}
	if len(path) < 2 {
		return RouteResult{}, domain.NewValidationError(fmt.Sprintf("route path needs at least 2 points, got %d", len(path)))
	}

	copied := make([]Coordinate, len(path))
	copy(copied, path)

	return RouteResult{
		DistanceKm: MetersToKm(distanceMeters),
		Path:       copied,
	}, nil
}

// Midpoint returns the path point used to center a map on the route.
func (r RouteResult) Midpoint() Coordinate {
	if len(r.Path) == 0 {
		return Coordinate{}
	}
	return r.Path[len(r.Path)/2]
}

// MetersToKm converts meters to kilometers without rounding.
func MetersToKm(meters float64) float64 {
	return meters / 1000
}

// FormatKm renders a distance with two decimals.
func FormatKm(km float64) string {
	return FormatFixed2(km)
}

// FormatFixed2 formats v with two decimals, rounding the exact binary value.
// Exact ties (multiples of 1/8 such as 0.125) round away from zero.
func FormatFixed2(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if isTie2(v) {
		n := int64(math.Abs(v)*100 + 0.5)
		s = fmt.Sprintf("%d.%02d", n/100, n%100)
		if v < 0 {
			s = "-" + s
		}
	}
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// isTie2 reports whether v sits exactly halfway between two hundredths.
// Such values are odd multiples of 1/8, which float64 represents exactly.
func isTie2(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= 1e15 {
		return false
	}
	eighths := v * 8
	return eighths == math.Trunc(eighths) && math.Mod(math.Abs(eighths), 2) == 1
}
