package geo

import (
	"testing"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouteResult_ConvertsMetersToKm(t *testing.T) {
	path := []Coordinate{{Lat: 18.52, Lng: 73.85}, {Lat: 18.53, Lng: 73.86}}

	route, err := NewRouteResult(12345, path)
	require.NoError(t, err)

	assert.Equal(t, 12.345, route.DistanceKm)
	assert.Equal(t, path, route.Path)
}

func TestNewRouteResult_CopiesPath(t *testing.T) {
	path := []Coordinate{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}

	route, err := NewRouteResult(1000, path)
	require.NoError(t, err)

	path[0].Lat = 99
	assert.Equal(t, 1.0, route.Path[0].Lat)
}

func TestNewRouteResult_RejectsInvalidInput(t *testing.T) {
	twoPoints := []Coordinate{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}

	_, err := NewRouteResult(0, twoPoints)
	assert.True(t, domain.IsValidation(err))

	_, err = NewRouteResult(-5, twoPoints)
	assert.True(t, domain.IsValidation(err))

	_, err = NewRouteResult(1000, twoPoints[:1])
	assert.True(t, domain.IsValidation(err))
}

func TestFormatKm(t *testing.T) {
	cases := map[float64]string{
		10:       "10.00",
		12.346:   "12.35",
		0.004:    "0.00",
		1.005001: "1.01",
		148.7:    "148.70",
		1.005:    "1.00",
		0.125:    "0.13",
		0.375:    "0.38",
		2.625:    "2.63",
		-0.125:   "-0.13",
		-0.001:   "0.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatKm(in), "FormatKm(%v)", in)
	}
}

func TestFormatKm_RoundsExactQuotient(t *testing.T) {
	// meters/1000 lands just below the half for these, so the display rounds down.
	cases := map[float64]string{
		75:  "0.07",
		215: "0.21",
		355: "0.35",
		425: "0.42",
		495: "0.49",
		125: "0.13",
	}
	for meters, want := range cases {
		assert.Equal(t, want, FormatKm(MetersToKm(meters)), "meters=%v", meters)
	}
}

func TestFormatKm_MatchesMetersDivision(t *testing.T) {
	route, err := NewRouteResult(148702.4, []Coordinate{{}, {Lat: 1, Lng: 1}})
	require.NoError(t, err)

	assert.Equal(t, "148.70", FormatKm(route.DistanceKm))
}

func TestRouteResult_Midpoint(t *testing.T) {
	route := RouteResult{Path: []Coordinate{{Lat: 1}, {Lat: 2}, {Lat: 3}}}
	assert.Equal(t, 2.0, route.Midpoint().Lat)

	assert.Equal(t, Coordinate{}, RouteResult{}.Midpoint())
}

func TestCoordinate_IsValid(t *testing.T) {
	assert.True(t, Coordinate{Lat: 18.52, Lng: 73.85}.IsValid())
	assert.False(t, Coordinate{Lat: 91, Lng: 0}.IsValid())
	assert.False(t, Coordinate{Lat: 0, Lng: -181}.IsValid())
}
