package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleet/internal/repository"
	"fleet/internal/service"
)

// ErrorResponse represents an error response. Trip is set when a rejected
// verification attempt still changed the trip (the session is now Failed).
type ErrorResponse struct {
	Error string        `json:"error"`
	Trip  *TripResponse `json:"trip,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidDisplayName),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidRoute),
		errors.Is(err, service.ErrInvalidBayID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidDocument),
		errors.Is(err, service.ErrInvalidExpense),
		errors.Is(err, service.ErrInvalidVerificationMethod),
		errors.Is(err, service.ErrInvalidOTP),
		errors.Is(err, errInvalidBody):
		return http.StatusBadRequest

	// Anonymous caller
	case errors.Is(err, service.ErrNotAuthenticated),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrUnknownAccount):
		return http.StatusUnauthorized

	// Wrong role or someone else's trip
	case errors.Is(err, service.ErrAuthorizationDenied),
		errors.Is(err, service.ErrTripNotAssignedToDriver):
		return http.StatusForbidden

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrTripBusy),
		errors.Is(err, service.ErrNoVerificationSession),
		errors.Is(err, service.ErrWrongVerificationMethod),
		errors.Is(err, service.ErrOTPNotIssued),
		errors.Is(err, service.ErrVerificationCancelled):
		return http.StatusConflict

	// Verification rejected
	case errors.Is(err, service.ErrVerificationMismatch),
		errors.Is(err, service.ErrOutsideGeofence):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrOTPAttemptsExceeded):
		return http.StatusTooManyRequests

	case errors.Is(err, service.ErrVerificationTimeout):
		return http.StatusGatewayTimeout

	case errors.Is(err, service.ErrGeofenceUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

var errInvalidBody = errors.New("invalid request body")

const timeLayout = "2006-01-02T15:04:05Z07:00"

// formatTime returns "" for the zero time so omitempty drops it.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
