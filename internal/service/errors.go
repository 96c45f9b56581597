package service

import (
	"errors"
	"fmt"

	"fleet/internal/domain"
)

var (
	// ErrNotAuthenticated is returned when an operation requires an identity and none is present.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthorizationDenied is returned when the caller's role is not allowed to perform an operation.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrInvalidRole is returned when login is attempted with an unknown role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidDisplayName is returned when login is attempted without a name.
	ErrInvalidDisplayName = errors.New("invalid display name")

	// ErrUnknownAccount is returned when the account directory has no match for a login.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrInvalidToken is returned when a session token cannot be parsed or verified.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidRoute is returned when origin or destination is missing.
	ErrInvalidRoute = errors.New("invalid route")

	// ErrInvalidBayID is returned when bay ID is empty.
	ErrInvalidBayID = errors.New("invalid bay id")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidDocument is returned when a document is missing required fields.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidExpense is returned when an expense claim fails validation.
	ErrInvalidExpense = errors.New("invalid expense")

	// ErrTripNotAssignedToDriver is returned when a driver acts on another driver's trip.
	ErrTripNotAssignedToDriver = errors.New("trip not assigned to this driver")

	// ErrTripBusy is returned when another transition on the same trip is in progress.
	ErrTripBusy = errors.New("trip is being updated, retry")

	// ErrInvalidTransition is returned when a trigger is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNoVerificationSession is returned when no open verification session exists.
	ErrNoVerificationSession = errors.New("no verification session")

	// ErrInvalidVerificationMethod is returned when an unknown method is selected.
	ErrInvalidVerificationMethod = errors.New("invalid verification method")

	// ErrWrongVerificationMethod is returned when input does not fit the selected method.
	ErrWrongVerificationMethod = errors.New("input does not match selected verification method")

	// ErrVerificationMismatch is returned when the OTP entered does not match the issued code.
	ErrVerificationMismatch = errors.New("verification code mismatch")

	// ErrVerificationTimeout is returned when the geofence check exceeds its bounded wait.
	ErrVerificationTimeout = errors.New("verification timed out")

	// ErrVerificationCancelled is returned when the session was discarded during a check.
	ErrVerificationCancelled = errors.New("verification cancelled")

	// ErrOutsideGeofence is returned when the device is not within the loading bay radius.
	ErrOutsideGeofence = errors.New("not within loading bay radius")

	// ErrGeofenceUnavailable is returned when the proximity check itself fails.
	ErrGeofenceUnavailable = errors.New("geofence check unavailable")

	// ErrOTPNotIssued is returned when no OTP has been issued for the trip.
	ErrOTPNotIssued = errors.New("no otp issued for trip")

	// ErrOTPAttemptsExceeded is returned when too many wrong codes were entered.
	ErrOTPAttemptsExceeded = errors.New("too many otp attempts, request a new code")

	// ErrInvalidOTP is returned when an empty code is issued or submitted.
	ErrInvalidOTP = errors.New("invalid otp")
)

// TransitionError describes a rejected trip or verification transition.
// It matches ErrInvalidTransition with errors.Is.
type TransitionError struct {
	Trigger string
	State   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Trigger, e.State)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func invalidTripTransition(trigger string, state domain.TripState) error {
	return &TransitionError{Trigger: trigger, State: string(state)}
}

func invalidExpenseTransition(trigger string, status domain.ExpenseStatus) error {
	return &TransitionError{Trigger: trigger, State: string(status)}
}

func invalidVerificationTransition(trigger string, status domain.VerificationStatus) error {
	return &TransitionError{Trigger: trigger, State: string(status)}
}
