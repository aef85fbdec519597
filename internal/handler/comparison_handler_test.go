package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/application"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/fare"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/geocoding"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGeocoder struct{}

func (stubGeocoder) Resolve(_ context.Context, address string) (geo.Coordinate, error) {
	switch address {
	case "Koregaon Park, Pune":
		return geo.Coordinate{Lat: 18.5362, Lng: 73.8940}, nil
	case "Hinjewadi, Pune":
		return geo.Coordinate{Lat: 18.5913, Lng: 73.7389}, nil
	}
	return geo.Coordinate{}, geocoding.ErrNotFound
}

func (stubGeocoder) Reverse(context.Context, geo.Coordinate) (string, error) {
	return "Camp, Pune 411001", nil
}

type stubRouter struct{}

func (stubRouter) Route(_ context.Context, origin, destination geo.Coordinate) (geo.RouteResult, error) {
	return geo.NewRouteResult(10000, []geo.Coordinate{origin, destination})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *application.SessionRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pricing, err := fare.NewTableStrategy(fare.DefaultTiers())
	require.NoError(t, err)
	svc := application.NewComparisonService(stubGeocoder{}, stubRouter{}, pricing, nil, nil, zap.NewNop())
	registry := application.NewSessionRegistry(svc, time.Hour, nil, zap.NewNop())

	r := gin.New()
	NewComparisonHandler(registry).RegisterRoutes(&r.RouterGroup)
	return r, registry
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEqual(t, uuid.Nil, created.SessionID)
	return created.SessionID.String()
}

func TestCompare_Success(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/comparisons", application.CompareRequest{
		Pickup: "Koregaon Park, Pune",
		Drop:   "Hinjewadi, Pune",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var view struct {
		Stage           string `json:"stage"`
		DistanceDisplay string `json:"distance_display"`
		Offers          []struct {
			Service      string `json:"service"`
			DisplayTotal string `json:"display_total"`
			Cheapest     bool   `json:"cheapest"`
		} `json:"offers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "done", view.Stage)
	assert.Equal(t, "10.00", view.DistanceDisplay)
	require.Len(t, view.Offers, 3)
	assert.Equal(t, "Uber", view.Offers[0].Service)
	assert.Equal(t, "150.00", view.Offers[0].DisplayTotal)
	assert.True(t, view.Offers[0].Cheapest)
	assert.False(t, view.Offers[2].Cheapest)

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"stage":"done"`)
}

func TestCompare_FailureIsStillOK(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/comparisons", application.CompareRequest{
		Pickup: "Koregaon Park, Pune",
		Drop:   "Nowhere",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		Stage   string `json:"stage"`
		Failure string `json:"failure"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "failed", view.Stage)
	assert.Equal(t, "invalid_drop_address", view.Failure)
	assert.Equal(t, "Invalid drop address. Try full address with city and pin.", view.Message)
}

func TestCompare_UnknownAndInvalidSession(t *testing.T) {
	r, _ := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/comparisons", application.CompareRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid session ID", env.Error)
}

func TestDeleteSession(t *testing.T) {
	r, registry := newTestRouter(t)
	id := createSession(t, r)
	require.Equal(t, 1, registry.Len())

	w, _ := doJSON(t, r, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, registry.Len())

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUseCurrentLocation(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	lat, lng := 18.5167, 73.8563
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/location", application.LocationRequest{
		Latitude:  &lat,
		Longitude: &lng,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res application.LocationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "Camp, Pune 411001", res.Pickup)
	assert.Equal(t, "Pickup set to your current location.", res.Message)
	assert.Nil(t, res.Failure)
}

func TestUseCurrentLocation_NoCoordinates(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/location", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res application.LocationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotNil(t, res.Failure)
	assert.Equal(t, "location_unavailable", res.Failure.String())
	assert.Equal(t, "Geolocation not supported by your browser.", res.Message)
}

func TestUseCurrentLocation_ChunkedEmptyBody(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/location", nil)
	req.Body = io.NopCloser(strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var res application.LocationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotNil(t, res.Failure)
	assert.Equal(t, "location_unavailable", res.Failure.String())
}

func TestUseCurrentLocation_MalformedBody(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/location", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTiers(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/tiers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tiers []fare.PriceTier
	require.NoError(t, json.Unmarshal(env.Data, &tiers))
	assert.Equal(t, fare.DefaultTiers(), tiers)
}
