package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"fleet/internal/domain"
	"fleet/internal/repository"
	"fleet/internal/service"
)

// Signal types consumed from the dispatch queue.
const (
	SignalTripReady = "trip.ready"
	SignalOTPIssued = "otp.issued"
)

// Signal is a message from dispatch.
type Signal struct {
	Type       string      `json:"type"`
	TripID     string      `json:"trip_id"`
	IssuerID   string      `json:"issuer_id"`
	IssuerRole domain.Role `json:"issuer_role"`
	Code       string      `json:"code,omitempty"`
}

// Outcome tells the consumer how to settle a delivery.
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRequeue
	OutcomeDrop
)

// TripSignals is the part of the trip service driven by dispatch.
type TripSignals interface {
	MarkReady(ctx context.Context, actor *domain.Identity, tripID string) (*domain.Trip, error)
	IssueOTP(ctx context.Context, actor *domain.Identity, tripID, code string) error
}

// SignalHandler applies dispatch signals to trips.
type SignalHandler struct {
	trips  TripSignals
	logger *slog.Logger
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(trips TripSignals, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{trips: trips, logger: logger}
}

// Handle decodes and applies one message. Rejections by the trip state machine
// are acknowledged; they are final for that signal.
func (h *SignalHandler) Handle(ctx context.Context, body []byte) Outcome {
	var sig Signal
	if err := json.Unmarshal(body, &sig); err != nil {
		h.logger.Warn("malformed dispatch signal", "error", err)
		return OutcomeDrop
	}

	actor := &domain.Identity{ID: sig.IssuerID, Role: sig.IssuerRole}

	var err error
	switch sig.Type {
	case SignalTripReady:
		_, err = h.trips.MarkReady(ctx, actor, sig.TripID)
	case SignalOTPIssued:
		err = h.trips.IssueOTP(ctx, actor, sig.TripID, sig.Code)
	default:
		h.logger.Warn("unknown dispatch signal", "type", sig.Type, "trip_id", sig.TripID)
		return OutcomeDrop
	}

	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, service.ErrTripBusy):
		return OutcomeRequeue
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAuthorizationDenied),
		errors.Is(err, service.ErrNotAuthenticated),
		errors.Is(err, repository.ErrNotFound):
		h.logger.Warn("dispatch signal rejected", "type", sig.Type, "trip_id", sig.TripID, "error", err)
		return OutcomeAck
	case errors.Is(err, service.ErrInvalidTripID), errors.Is(err, service.ErrInvalidOTP):
		h.logger.Warn("invalid dispatch signal", "type", sig.Type, "trip_id", sig.TripID, "error", err)
		return OutcomeDrop
	default:
		h.logger.Error("failed to apply dispatch signal", "type", sig.Type, "trip_id", sig.TripID, "error", err)
		return OutcomeRequeue
	}
}
