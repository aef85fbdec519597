package location

import (
	"context"
	"errors"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/geo"
)

// ErrUnavailable is returned when the device cannot or will not share its position.
var ErrUnavailable = errors.New("location: device position unavailable")

// Locator yields the device's current position.
type Locator interface {
	Locate(ctx context.Context) (geo.Coordinate, error)
}

// Fixed is a position the browser already obtained and sent along with the request.
type Fixed geo.Coordinate

// Locate returns the fixed position, or ErrUnavailable if it is out of range.
func (f Fixed) Locate(ctx context.Context) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}
	coord := geo.Coordinate(f)
	if !coord.IsValid() {
		return geo.Coordinate{}, ErrUnavailable
	}
	return coord, nil
}

// Unavailable is the locator for a device without location support or with permission denied.
type Unavailable struct{}

// Locate always fails with ErrUnavailable.
func (Unavailable) Locate(context.Context) (geo.Coordinate, error) {
	return geo.Coordinate{}, ErrUnavailable
}

// FromBrowser picks a locator from optional latitude/longitude sent by the widget.
func FromBrowser(lat, lng *float64) Locator {
	if lat == nil || lng == nil {
		return Unavailable{}
	}
	return Fixed{Lat: *lat, Lng: *lng}
}
