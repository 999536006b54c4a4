package httpapi

import (
	"errors"
	"net/http"

	"github.com/UnknownOlympus/aerodrome/internal/backend"
	"github.com/UnknownOlympus/aerodrome/internal/coordinator"
	"github.com/UnknownOlympus/aerodrome/internal/directory"
	"github.com/UnknownOlympus/aerodrome/internal/session"
	"github.com/UnknownOlympus/aerodrome/internal/task"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps command errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrValidation),
		errors.Is(err, session.ErrValidation),
		errors.Is(err, session.ErrPasswordMismatch),
		errors.Is(err, backend.ErrFieldValidation),
		errors.Is(err, directory.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrInvalidCredentials),
		errors.Is(err, backend.ErrSessionExpired),
		errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, coordinator.ErrNotVerified):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrNotFound),
		errors.Is(err, session.ErrUnsupportedProvider):
		return http.StatusNotFound
	case errors.Is(err, task.ErrSuperseded),
		errors.Is(err, session.ErrInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: backend.Message(err)})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: message})
}
