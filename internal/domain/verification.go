package domain

import "time"

// VerificationMethod is how a driver proves they are at the loading bay.
type VerificationMethod string

const (
	VerificationOTP      VerificationMethod = "OTP"
	VerificationGeofence VerificationMethod = "GEOFENCE"
)

// Valid reports whether m is a known method.
func (m VerificationMethod) Valid() bool {
	return m == VerificationOTP || m == VerificationGeofence
}

// VerificationStatus is the state of a verification session.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "PENDING"
	VerificationVerifying VerificationStatus = "VERIFYING"
	VerificationVerified  VerificationStatus = "VERIFIED"
	VerificationFailed    VerificationStatus = "FAILED"
)

// VerificationSession gates the Ready -> Active transition of a trip.
type VerificationSession struct {
	ID          string
	Method      VerificationMethod // Empty until a method is selected.
	Status      VerificationStatus
	AttemptCode string // Last OTP the driver entered.
	Attempts    int
	OpenedAt    time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the session was abandoned for longer than ttl.
func (v *VerificationSession) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(v.UpdatedAt) > ttl
}
