package handler

import (
	"errors"
	"io"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/application"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/location"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionResponse is returned when a widget session is opened.
type SessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
}

// ComparisonHandler handles HTTP requests for fare comparison sessions.
type ComparisonHandler struct {
	registry *application.SessionRegistry
}

// NewComparisonHandler creates a new ComparisonHandler.
func NewComparisonHandler(registry *application.SessionRegistry) *ComparisonHandler {
	return &ComparisonHandler{registry: registry}
}

// RegisterRoutes registers all comparison routes on the given router group.
func (h *ComparisonHandler) RegisterRoutes(r *gin.RouterGroup) {
	api := r.Group("/api/v1")
	api.GET("/tiers", h.ListTiers)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.DeleteSession)
		sessions.POST("/:id/comparisons", h.Compare)
		sessions.POST("/:id/location", h.UseCurrentLocation)
	}
}

// CreateSession handles POST /api/v1/sessions.
func (h *ComparisonHandler) CreateSession(c *gin.Context) {
	comparator := h.registry.Create()
	response.Created(c, SessionResponse{SessionID: comparator.ID()})
}

// GetSession handles GET /api/v1/sessions/:id.
func (h *ComparisonHandler) GetSession(c *gin.Context) {
	comparator, ok := h.lookup(c)
	if !ok {
		return
	}
	response.Success(c, comparator.Snapshot())
}

// DeleteSession handles DELETE /api/v1/sessions/:id.
func (h *ComparisonHandler) DeleteSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return
	}
	if err := h.registry.Delete(sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Compare handles POST /api/v1/sessions/:id/comparisons. Pipeline failures are
// reported inside the view with a 200; only a superseded run yields an error.
func (h *ComparisonHandler) Compare(c *gin.Context) {
	comparator, ok := h.lookup(c)
	if !ok {
		return
	}

	var req application.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	view, err := comparator.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// UseCurrentLocation handles POST /api/v1/sessions/:id/location.
func (h *ComparisonHandler) UseCurrentLocation(c *gin.Context) {
	comparator, ok := h.lookup(c)
	if !ok {
		return
	}

	// An empty body means the browser has no coordinates to offer.
	var req application.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := comparator.ResolveCurrentLocation(c.Request.Context(), location.FromBrowser(req.Latitude, req.Longitude))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListTiers handles GET /api/v1/tiers.
func (h *ComparisonHandler) ListTiers(c *gin.Context) {
	response.Success(c, h.registry.Service().Tiers())
}

func (h *ComparisonHandler) lookup(c *gin.Context) (*application.Comparator, bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return nil, false
	}
	comparator, err := h.registry.Get(sessionID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return comparator, true
}
