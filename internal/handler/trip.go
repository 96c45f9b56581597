package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/middleware"
	"fleet/internal/service"
)

// TripHandler handles HTTP requests for trips and their verification.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// CreateTripRequest is the HTTP request body for scheduling a trip.
type CreateTripRequest struct {
	DriverID    string `json:"driver_id"`
	VehicleID   string `json:"vehicle_id"`
	BayID       string `json:"bay_id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// IssueOTPRequest is the HTTP request body for issuing a trip OTP.
type IssueOTPRequest struct {
	Code string `json:"code"`
}

// SelectMethodRequest is the HTTP request body for choosing a verification method.
type SelectMethodRequest struct {
	Method string `json:"method"`
}

// SubmitOTPRequest is the HTTP request body for entering the OTP.
type SubmitOTPRequest struct {
	Code string `json:"code"`
}

// GeofenceRequest carries the device position.
type GeofenceRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	TripID       string                `json:"trip_id"`
	DriverID     string                `json:"driver_id"`
	VehicleID    string                `json:"vehicle_id,omitempty"`
	BayID        string                `json:"bay_id,omitempty"`
	State        string                `json:"state"`
	Origin       string                `json:"origin"`
	Destination  string                `json:"destination"`
	Verification *VerificationResponse `json:"verification,omitempty"`
	EndRequested bool                  `json:"end_requested"`
	CreatedAt    string                `json:"created_at"`
	ReadyAt      string                `json:"ready_at,omitempty"`
	StartedAt    string                `json:"started_at,omitempty"`
	EndedAt      string                `json:"ended_at,omitempty"`
}

// VerificationResponse describes the open verification session. The entered
// code is never echoed back.
type VerificationResponse struct {
	ID       string `json:"id"`
	Method   string `json:"method,omitempty"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	OpenedAt string `json:"opened_at"`
}

func toTripResponse(trip *domain.Trip) *TripResponse {
	response := &TripResponse{
		TripID:       trip.ID,
		DriverID:     trip.DriverID,
		VehicleID:    trip.VehicleID,
		BayID:        trip.BayID,
		State:        string(trip.State),
		Origin:       trip.Route.Origin,
		Destination:  trip.Route.Destination,
		EndRequested: trip.EndRequested(),
		CreatedAt:    formatTime(trip.CreatedAt),
		ReadyAt:      formatTime(trip.ReadyAt),
		StartedAt:    formatTime(trip.StartedAt),
		EndedAt:      formatTime(trip.EndedAt),
	}

	if v := trip.Verification; v != nil {
		response.Verification = &VerificationResponse{
			ID:       v.ID,
			Method:   string(v.Method),
			Status:   string(v.Status),
			Attempts: v.Attempts,
			OpenedAt: formatTime(v.OpenedAt),
		}
	}

	return response
}

// respondTrip writes the trip, or the error with the trip attached when a
// rejected attempt was still recorded.
func respondTrip(c *gin.Context, code int, trip *domain.Trip, err error) {
	if err != nil {
		if trip == nil {
			respondError(c, err)
			return
		}
		c.JSON(mapErrorToHTTPStatus(err), ErrorResponse{Error: err.Error(), Trip: toTripResponse(trip)})
		return
	}
	respondJSON(c, code, toTripResponse(trip))
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), middleware.Identity(c), service.CreateTripRequest{
		DriverID:    req.DriverID,
		VehicleID:   req.VehicleID,
		BayID:       req.BayID,
		Origin:      req.Origin,
		Destination: req.Destination,
	})
	respondTrip(c, http.StatusCreated, trip, err)
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	respondTrip(c, http.StatusOK, trip, err)
}

// GetAll handles GET /v1/trips
func (h *TripHandler) GetAll(c *gin.Context) {
	trips, err := h.tripService.ListTrips(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]*TripResponse, 0, len(trips))
	for _, trip := range trips {
		response = append(response, toTripResponse(trip))
	}

	respondJSON(c, http.StatusOK, response)
}

// MarkReady handles POST /v1/trips/:id/ready
func (h *TripHandler) MarkReady(c *gin.Context) {
	trip, err := h.tripService.MarkReady(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	respondTrip(c, http.StatusOK, trip, err)
}

// IssueOTP handles POST /v1/trips/:id/otp
func (h *TripHandler) IssueOTP(c *gin.Context) {
	var req IssueOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	tripID := c.Param("id")
	if err := h.tripService.IssueOTP(c.Request.Context(), middleware.Identity(c), tripID, req.Code); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, gin.H{"trip_id": tripID, "status": "issued"})
}

// StartTrip handles POST /v1/trips/:id/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	trip, err := h.tripService.StartTrip(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	respondTrip(c, http.StatusOK, trip, err)
}

// SelectMethod handles POST /v1/trips/:id/verification/method
func (h *TripHandler) SelectMethod(c *gin.Context) {
	var req SelectMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	trip, err := h.tripService.SelectVerificationMethod(c.Request.Context(), middleware.Identity(c), c.Param("id"), domain.VerificationMethod(req.Method))
	respondTrip(c, http.StatusOK, trip, err)
}

// SubmitOTP handles POST /v1/trips/:id/verification/otp
func (h *TripHandler) SubmitOTP(c *gin.Context) {
	var req SubmitOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	trip, err := h.tripService.SubmitOTP(c.Request.Context(), middleware.Identity(c), c.Param("id"), req.Code)
	respondTrip(c, http.StatusOK, trip, err)
}

// VerifyGeofence handles POST /v1/trips/:id/verification/geofence
func (h *TripHandler) VerifyGeofence(c *gin.Context) {
	var req GeofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	trip, err := h.tripService.VerifyGeofence(c.Request.Context(), middleware.Identity(c), c.Param("id"), domain.Position{Lat: req.Lat, Lng: req.Lng})
	respondTrip(c, http.StatusOK, trip, err)
}

// CancelVerification handles DELETE /v1/trips/:id/verification
func (h *TripHandler) CancelVerification(c *gin.Context) {
	trip, err := h.tripService.CancelVerification(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	respondTrip(c, http.StatusOK, trip, err)
}

// RequestEnd handles POST /v1/trips/:id/end/request
func (h *TripHandler) RequestEnd(c *gin.Context) {
	trip, err := h.tripService.RequestEnd(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	respondTrip(c, http.StatusOK, trip, err)
}

// ConfirmEnd handles POST /v1/trips/:id/end/confirm
func (h *TripHandler) ConfirmEnd(c *gin.Context) {
	trip, err := h.tripService.ConfirmEnd(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	respondTrip(c, http.StatusOK, trip, err)
}
