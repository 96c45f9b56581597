package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/middleware"
	"fleet/internal/service"
)

// BayHandler registers loading bay coordinates.
type BayHandler struct {
	tripService *service.TripService
}

// NewBayHandler creates a new BayHandler.
func NewBayHandler(tripService *service.TripService) *BayHandler {
	return &BayHandler{tripService: tripService}
}

// BayLocationRequest is the HTTP request body for a bay coordinate.
type BayLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SetLocation handles PUT /v1/bays/:id/location
func (h *BayHandler) SetLocation(c *gin.Context) {
	var req BayLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	loc := domain.BayLocation{BayID: c.Param("id"), Lat: req.Lat, Lng: req.Lng}
	if err := h.tripService.RegisterBay(c.Request.Context(), middleware.Identity(c), loc); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"bay_id": loc.BayID, "lat": loc.Lat, "lng": loc.Lng})
}
