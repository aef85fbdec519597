package response

import (
	"net/http"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain"
	"github.com/gin-gonic/gin"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// NoContent writes a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest writes a 400 response.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Error: message})
}

// Error maps domain errors to HTTP status codes.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case domain.IsValidation(err):
		status, message = http.StatusBadRequest, err.Error()
	case domain.IsNotFound(err):
		status, message = http.StatusNotFound, err.Error()
	case domain.IsConflict(err):
		status, message = http.StatusConflict, err.Error()
	default:
		_ = c.Error(err)
	}
	c.JSON(status, Envelope{Error: message})
}
