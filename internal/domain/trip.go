package domain

import "time"

// TripState represents the lifecycle state of a trip.
type TripState string

const (
	TripStateScheduled TripState = "SCHEDULED"
	TripStateReady     TripState = "READY"
	TripStateActive    TripState = "ACTIVE"
	TripStateEnded     TripState = "ENDED"
)

// Route is the origin and destination of a trip.
type Route struct {
	Origin      string
	Destination string
}

// Trip represents a single trip instance. An ended trip is never reused.
type Trip struct {
	ID             string
	DriverID       string
	VehicleID      string
	BayID          string // Loading bay used by the geofence check.
	State          TripState
	Route          Route
	Verification   *VerificationSession // Only set while Ready.
	EndRequestedAt time.Time            // Set by the first step of the end protocol.
	CreatedAt      time.Time
	ReadyAt        time.Time
	StartedAt      time.Time
	EndedAt        time.Time
}

// EndRequested reports whether the driver asked to end the trip and has not confirmed yet.
func (t *Trip) EndRequested() bool {
	return !t.EndRequestedAt.IsZero()
}
