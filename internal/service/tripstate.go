package service

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	"fleet/internal/domain"
)

// The functions below are the trip state machine. They mutate a trip in memory
// and never touch storage; TripService persists the result.

// markReady applies the readiness signal: Scheduled -> Ready.
func markReady(t *domain.Trip, now time.Time) error {
	if t.State != domain.TripStateScheduled {
		return invalidTripTransition("mark ready", t.State)
	}
	t.State = domain.TripStateReady
	t.ReadyAt = now
	return nil
}

// openVerification starts a new verification session on a Ready trip.
// Any previous session is discarded. The trip state does not change.
func openVerification(t *domain.Trip, now time.Time) (*domain.VerificationSession, error) {
	if t.State != domain.TripStateReady {
		return nil, invalidTripTransition("start trip", t.State)
	}
	t.Verification = &domain.VerificationSession{
		ID:        uuid.New().String(),
		Status:    domain.VerificationPending,
		OpenedAt:  now,
		UpdatedAt: now,
	}
	return t.Verification, nil
}

// selectMethod moves the session from Pending (or Failed, on re-entry) to Verifying.
func selectMethod(t *domain.Trip, method domain.VerificationMethod, now time.Time) error {
	if !method.Valid() {
		return ErrInvalidVerificationMethod
	}
	v := t.Verification
	if v == nil {
		return ErrNoVerificationSession
	}
	if v.Status != domain.VerificationPending && v.Status != domain.VerificationFailed {
		return invalidVerificationTransition("select method", v.Status)
	}
	v.Method = method
	v.Status = domain.VerificationVerifying
	v.UpdatedAt = now
	return nil
}

// beginCheck puts a session that uses method back into Verifying before an attempt.
// A Failed session may be retried without re-selecting its method.
func beginCheck(t *domain.Trip, method domain.VerificationMethod, now time.Time) error {
	v := t.Verification
	if v == nil {
		return ErrNoVerificationSession
	}
	if v.Method != method {
		return ErrWrongVerificationMethod
	}
	if v.Status != domain.VerificationVerifying && v.Status != domain.VerificationFailed {
		return invalidVerificationTransition("verify", v.Status)
	}
	v.Status = domain.VerificationVerifying
	v.UpdatedAt = now
	return nil
}

// recordOTPAttempt compares code with expected by exact match and resolves the session.
func recordOTPAttempt(t *domain.Trip, code, expected string, now time.Time) bool {
	v := t.Verification
	v.AttemptCode = code
	v.Attempts++
	v.UpdatedAt = now
	if expected != "" && subtle.ConstantTimeCompare([]byte(code), []byte(expected)) == 1 {
		v.Status = domain.VerificationVerified
		return true
	}
	v.Status = domain.VerificationFailed
	return false
}

// resolveCheck records the outcome of a geofence check.
func resolveCheck(t *domain.Trip, ok bool, now time.Time) {
	v := t.Verification
	v.Attempts++
	v.UpdatedAt = now
	if ok {
		v.Status = domain.VerificationVerified
		return
	}
	v.Status = domain.VerificationFailed
}

// activate folds a Verified session into the trip: Ready -> Active.
// It is the only way a trip becomes Active.
func activate(t *domain.Trip, now time.Time) error {
	if t.State != domain.TripStateReady {
		return invalidTripTransition("activate", t.State)
	}
	if t.Verification == nil || t.Verification.Status != domain.VerificationVerified {
		return invalidTripTransition("activate without verification", t.State)
	}
	t.State = domain.TripStateActive
	t.StartedAt = now
	t.Verification = nil
	return nil
}

// discardVerification drops the open session. It reports whether one existed.
func discardVerification(t *domain.Trip) bool {
	if t.Verification == nil {
		return false
	}
	t.Verification = nil
	return true
}

// requestEnd is the first step of ending a trip.
func requestEnd(t *domain.Trip, now time.Time) error {
	if t.State != domain.TripStateActive {
		return invalidTripTransition("request end", t.State)
	}
	if !t.EndRequested() {
		t.EndRequestedAt = now
	}
	return nil
}

// confirmEnd is the second step of ending a trip: Active -> Ended.
func confirmEnd(t *domain.Trip, now time.Time) error {
	if t.State != domain.TripStateActive {
		return invalidTripTransition("end trip", t.State)
	}
	if !t.EndRequested() {
		return invalidTripTransition("confirm end before requesting it", t.State)
	}
	t.State = domain.TripStateEnded
	t.EndedAt = now
	return nil
}
