package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// TripLocker serializes transitions on a single trip.
type TripLocker interface {
	// AcquireTripLock returns an owner token when the lock was taken.
	AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (token string, ok bool, err error)
	// ReleaseTripLock releases the lock only while token still owns it.
	ReleaseTripLock(ctx context.Context, tripID, token string) error
}

// OTPStore holds the codes issued out-of-band by dispatch.
type OTPStore interface {
	// Issue stores code for the trip and resets its failure count.
	Issue(ctx context.Context, tripID, code string, ttl time.Duration) error

	// Get returns the issued code, or "" if none is live.
	Get(ctx context.Context, tripID string) (string, error)

	// RecordFailure increments and returns the failure count for the trip's code.
	RecordFailure(ctx context.Context, tripID string) (int, error)

	// Revoke deletes the code and its failure count.
	Revoke(ctx context.Context, tripID string) error
}

// ProximityChecker reports whether a device position lies within a loading bay radius.
type ProximityChecker interface {
	WithinBay(ctx context.Context, bayID string, pos domain.Position, radiusMeters float64) (bool, error)
	SetBayLocation(ctx context.Context, loc domain.BayLocation) error
}

// TripConfig holds the verification tunables.
type TripConfig struct {
	OTPTTL               time.Duration
	OTPMaxAttempts       int // 0 disables the cap.
	GeofenceRadiusMeters float64
	GeofenceTimeout      time.Duration
	GeofenceRetries      int
	GeofenceRetryDelay   time.Duration
	VerificationTTL      time.Duration // Abandoned sessions older than this are discarded.
	LockTTL              time.Duration
}

// DefaultTripConfig returns default configuration.
func DefaultTripConfig() TripConfig {
	return TripConfig{
		OTPTTL:               30 * time.Minute,
		OTPMaxAttempts:       5,
		GeofenceRadiusMeters: 200,
		GeofenceTimeout:      15 * time.Second,
		GeofenceRetries:      2,
		GeofenceRetryDelay:   500 * time.Millisecond,
		VerificationTTL:      15 * time.Minute,
		LockTTL:              10 * time.Second,
	}
}

type inflightCheck struct {
	cancel context.CancelFunc
}

// TripService handles the trip lifecycle and its verification sub-flow.
type TripService struct {
	tripRepo            repository.TripRepository
	locker              TripLocker
	otps                OTPStore
	proximity           ProximityChecker
	notificationService *NotificationService
	cfg                 TripConfig
	logger              *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightCheck // Geofence checks keyed by trip ID.
}

// NewTripService creates a new TripService.
func NewTripService(
	tripRepo repository.TripRepository,
	locker TripLocker,
	otps OTPStore,
	proximity ProximityChecker,
	notificationService *NotificationService,
	cfg TripConfig,
	logger *slog.Logger,
) *TripService {
	return &TripService{
		tripRepo:            tripRepo,
		locker:              locker,
		otps:                otps,
		proximity:           proximity,
		notificationService: notificationService,
		cfg:                 cfg,
		logger:              logger,
		inflight:            make(map[string]*inflightCheck),
	}
}

// CreateTripRequest contains the parameters for scheduling a trip.
type CreateTripRequest struct {
	DriverID    string
	VehicleID   string
	BayID       string
	Origin      string
	Destination string
}

// CreateTrip schedules a new trip for a driver.
func (s *TripService) CreateTrip(ctx context.Context, actor *domain.Identity, req CreateTripRequest) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleAdmin, domain.RoleSupplier); err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.DriverID) == "" {
		return nil, ErrInvalidDriverID
	}

	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return nil, ErrInvalidRoute
	}

	trip := &domain.Trip{
		ID:        uuid.New().String(),
		DriverID:  req.DriverID,
		VehicleID: req.VehicleID,
		BayID:     req.BayID,
		State:     domain.TripStateScheduled,
		Route: domain.Route{
			Origin:      req.Origin,
			Destination: req.Destination,
		},
		CreatedAt: time.Now(),
	}

	if err := s.tripRepo.Create(ctx, trip); err != nil {
		return nil, err
	}

	s.notify(ctx, NotificationTripScheduled, trip)
	return trip, nil
}

// GetTrip retrieves a trip by ID. Drivers may only read their own trips.
func (s *TripService) GetTrip(ctx context.Context, actor *domain.Identity, tripID string) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleAdmin, domain.RoleDriver, domain.RoleSupplier); err != nil {
		return nil, err
	}

	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if actor.Role == domain.RoleDriver && trip.DriverID != actor.ID {
		return nil, ErrTripNotAssignedToDriver
	}

	s.hideAbandoned(trip, time.Now())
	return trip, nil
}

// ListTrips returns the trips visible to the actor: a driver's own trips, or all trips.
func (s *TripService) ListTrips(ctx context.Context, actor *domain.Identity) ([]*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleAdmin, domain.RoleDriver, domain.RoleSupplier); err != nil {
		return nil, err
	}

	var (
		trips []*domain.Trip
		err   error
	)
	if actor.Role == domain.RoleDriver {
		trips, err = s.tripRepo.GetByDriverID(ctx, actor.ID)
	} else {
		trips, err = s.tripRepo.GetAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, trip := range trips {
		s.hideAbandoned(trip, now)
	}
	return trips, nil
}

// MarkReady applies the readiness signal from dispatch: Scheduled -> Ready.
// The issuer must hold supplier or dispatch (admin) authority.
func (s *TripService) MarkReady(ctx context.Context, actor *domain.Identity, tripID string) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleAdmin, domain.RoleSupplier); err != nil {
		return nil, err
	}

	trip, err := s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		if err := markReady(trip, now); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trip ready", "trip_id", trip.ID, "issuer", actor.ID, "issuer_role", actor.Role)
	s.notify(ctx, NotificationTripReady, trip)
	return trip, nil
}

// IssueOTP stores the code dispatch handed to the driver out-of-band.
func (s *TripService) IssueOTP(ctx context.Context, actor *domain.Identity, tripID, code string) error {
	if err := Authorize(actor, domain.RoleAdmin, domain.RoleSupplier); err != nil {
		return err
	}

	if strings.TrimSpace(code) == "" {
		return ErrInvalidOTP
	}

	if tripID == "" {
		return ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return err
	}

	if trip.State != domain.TripStateScheduled && trip.State != domain.TripStateReady {
		return invalidTripTransition("issue otp", trip.State)
	}

	if err := s.otps.Issue(ctx, tripID, code, s.cfg.OTPTTL); err != nil {
		return err
	}

	s.logger.Info("otp issued", "trip_id", tripID, "issuer", actor.ID)
	return nil
}

// StartTrip opens a verification session on a Ready trip. The trip stays Ready
// until the session is Verified.
func (s *TripService) StartTrip(ctx context.Context, actor *domain.Identity, tripID string) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleDriver); err != nil {
		return nil, err
	}

	trip, err := s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		if err := ownTrip(actor, trip); err != nil {
			return false, err
		}
		s.cancelInflight(trip.ID)
		if _, err := openVerification(trip, now); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, NotificationVerificationOpened, trip)
	return trip, nil
}

// SelectVerificationMethod moves the open session to Verifying with method.
func (s *TripService) SelectVerificationMethod(ctx context.Context, actor *domain.Identity, tripID string, method domain.VerificationMethod) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleDriver); err != nil {
		return nil, err
	}

	return s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		if err := ownTrip(actor, trip); err != nil {
			return false, err
		}
		if err := selectMethod(trip, method, now); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SubmitOTP checks the driver's code against the issued one. A match activates
// the trip; a mismatch fails the session and leaves the trip Ready.
func (s *TripService) SubmitOTP(ctx context.Context, actor *domain.Identity, tripID, code string) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleDriver); err != nil {
		return nil, err
	}

	if code == "" {
		return nil, ErrInvalidOTP
	}

	var (
		activated bool
		outcome   error
	)

	trip, err := s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		if err := ownTrip(actor, trip); err != nil {
			return false, err
		}
		if err := beginCheck(trip, domain.VerificationOTP, now); err != nil {
			return false, err
		}

		expected, err := s.otps.Get(ctx, trip.ID)
		if err != nil {
			return false, err
		}
		if expected == "" {
			return false, ErrOTPNotIssued
		}

		if recordOTPAttempt(trip, code, expected, now) {
			if err := activate(trip, now); err != nil {
				return false, err
			}
			// Single use.
			if err := s.otps.Revoke(ctx, trip.ID); err != nil {
				s.logger.Warn("failed to revoke otp", "trip_id", trip.ID, "error", err)
			}
			activated = true
			return true, nil
		}

		outcome = ErrVerificationMismatch
		failures, err := s.otps.RecordFailure(ctx, trip.ID)
		if err != nil {
			s.logger.Warn("failed to record otp failure", "trip_id", trip.ID, "error", err)
		} else if s.cfg.OTPMaxAttempts > 0 && failures >= s.cfg.OTPMaxAttempts {
			if err := s.otps.Revoke(ctx, trip.ID); err != nil {
				s.logger.Warn("failed to revoke otp", "trip_id", trip.ID, "error", err)
			}
			outcome = ErrOTPAttemptsExceeded
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if activated {
		s.logger.Info("trip active", "trip_id", trip.ID, "method", domain.VerificationOTP)
		s.notify(ctx, NotificationTripActive, trip)
		return trip, nil
	}

	s.notify(ctx, NotificationVerificationFailed, trip)
	return trip, outcome
}

// VerifyGeofence runs the proximity check for the device position. The check is
// bounded by the configured timeout and is cancelled if the session is
// discarded meanwhile; a stale result is never applied.
func (s *TripService) VerifyGeofence(ctx context.Context, actor *domain.Identity, tripID string, pos domain.Position) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleDriver); err != nil {
		return nil, err
	}

	if !pos.Valid() {
		return nil, ErrInvalidLocation
	}

	var sessionID, bayID string
	_, err := s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		if err := ownTrip(actor, trip); err != nil {
			return false, err
		}
		if err := beginCheck(trip, domain.VerificationGeofence, now); err != nil {
			return false, err
		}
		sessionID = trip.Verification.ID
		bayID = trip.BayID
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	within, checkErr := s.runCheck(ctx, tripID, bayID, pos)
	if checkErr != nil && errors.Is(checkErr, ErrVerificationCancelled) {
		return nil, checkErr
	}

	var outcome error
	activated := false
	trip, err := s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		v := trip.Verification
		if v == nil || v.ID != sessionID || v.Status != domain.VerificationVerifying {
			return false, ErrVerificationCancelled
		}

		switch {
		case checkErr != nil:
			resolveCheck(trip, false, now)
			outcome = checkErr
		case !within:
			resolveCheck(trip, false, now)
			outcome = ErrOutsideGeofence
		default:
			resolveCheck(trip, true, now)
			if err := activate(trip, now); err != nil {
				return false, err
			}
			activated = true
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if activated {
		s.logger.Info("trip active", "trip_id", trip.ID, "method", domain.VerificationGeofence)
		s.notify(ctx, NotificationTripActive, trip)
		return trip, nil
	}

	s.notify(ctx, NotificationVerificationFailed, trip)
	return trip, outcome
}

// runCheck performs the bounded, cancellable proximity check. Transient
// failures are retried until the bound expires.
func (s *TripService) runCheck(ctx context.Context, tripID, bayID string, pos domain.Position) (bool, error) {
	checkCtx, cancel := context.WithTimeout(ctx, s.cfg.GeofenceTimeout)
	defer cancel()

	check := &inflightCheck{cancel: cancel}
	s.mu.Lock()
	if prev, ok := s.inflight[tripID]; ok {
		prev.cancel()
	}
	s.inflight[tripID] = check
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.inflight[tripID] == check {
			delete(s.inflight, tripID)
		}
		s.mu.Unlock()
	}()

	var (
		within bool
		err    error
	)
	for attempt := 0; attempt <= s.cfg.GeofenceRetries; attempt++ {
		within, err = s.proximity.WithinBay(checkCtx, bayID, pos, s.cfg.GeofenceRadiusMeters)
		if err == nil || checkCtx.Err() != nil {
			break
		}
		s.logger.Warn("geofence check failed", "trip_id", tripID, "attempt", attempt+1, "error", err)
		if attempt == s.cfg.GeofenceRetries {
			break
		}
		select {
		case <-checkCtx.Done():
		case <-time.After(s.cfg.GeofenceRetryDelay):
		}
	}

	switch {
	case ctx.Err() != nil:
		// The caller went away; nothing may be applied.
		return false, ErrVerificationCancelled
	case errors.Is(checkCtx.Err(), context.DeadlineExceeded):
		return false, ErrVerificationTimeout
	case errors.Is(checkCtx.Err(), context.Canceled):
		return false, ErrVerificationCancelled
	case errors.Is(err, repository.ErrNotFound):
		return false, ErrInvalidBayID
	case err != nil:
		return false, ErrGeofenceUnavailable
	}
	return within, nil
}

// CancelVerification discards the open verification session.
func (s *TripService) CancelVerification(ctx context.Context, actor *domain.Identity, tripID string) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleDriver); err != nil {
		return nil, err
	}

	trip, err := s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		if err := ownTrip(actor, trip); err != nil {
			return false, err
		}
		s.cancelInflight(trip.ID)
		if !discardVerification(trip) {
			return false, ErrNoVerificationSession
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, NotificationVerificationCanceled, trip)
	return trip, nil
}

// RequestEnd is the first step of ending an Active trip.
func (s *TripService) RequestEnd(ctx context.Context, actor *domain.Identity, tripID string) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleDriver); err != nil {
		return nil, err
	}

	trip, err := s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		if err := ownTrip(actor, trip); err != nil {
			return false, err
		}
		if err := requestEnd(trip, now); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, NotificationTripEndRequested, trip)
	return trip, nil
}

// ConfirmEnd ends a trip whose end was requested: Active -> Ended.
func (s *TripService) ConfirmEnd(ctx context.Context, actor *domain.Identity, tripID string) (*domain.Trip, error) {
	if err := Authorize(actor, domain.RoleDriver); err != nil {
		return nil, err
	}

	trip, err := s.withTripLock(ctx, tripID, func(trip *domain.Trip, now time.Time) (bool, error) {
		if err := ownTrip(actor, trip); err != nil {
			return false, err
		}
		if err := confirmEnd(trip, now); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trip ended", "trip_id", trip.ID, "driver_id", trip.DriverID)
	s.notify(ctx, NotificationTripEnded, trip)
	return trip, nil
}

// RegisterBay records the coordinate of a loading bay for the geofence check.
func (s *TripService) RegisterBay(ctx context.Context, actor *domain.Identity, loc domain.BayLocation) error {
	if err := Authorize(actor, domain.RoleAdmin); err != nil {
		return err
	}

	if strings.TrimSpace(loc.BayID) == "" {
		return ErrInvalidBayID
	}

	if !(domain.Position{Lat: loc.Lat, Lng: loc.Lng}).Valid() {
		return ErrInvalidLocation
	}

	return s.proximity.SetBayLocation(ctx, loc)
}

// SessionEnded discards the verification sessions a driver left open when
// logging out, cancelling any check in flight.
func (s *TripService) SessionEnded(ctx context.Context, identity domain.Identity) {
	if identity.Role != domain.RoleDriver {
		return
	}

	trips, err := s.tripRepo.GetByDriverID(ctx, identity.ID)
	if err != nil {
		s.logger.Warn("failed to load trips on logout", "driver_id", identity.ID, "error", err)
		return
	}

	for _, t := range trips {
		if t.Verification == nil {
			continue
		}
		_, err := s.withTripLock(ctx, t.ID, func(trip *domain.Trip, now time.Time) (bool, error) {
			s.cancelInflight(trip.ID)
			return discardVerification(trip), nil
		})
		if err != nil {
			s.logger.Warn("failed to discard verification on logout", "trip_id", t.ID, "error", err)
		}
	}
}

// withTripLock loads the trip under its lock, applies fn and persists the trip
// when fn reports a change. fn's error is returned after persisting, so a
// rejected attempt can still record its outcome.
func (s *TripService) withTripLock(ctx context.Context, tripID string, fn func(trip *domain.Trip, now time.Time) (bool, error)) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	if s.locker != nil {
		token, acquired, err := s.locker.AcquireTripLock(ctx, tripID, s.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrTripBusy
		}
		defer func() {
			if err := s.locker.ReleaseTripLock(context.WithoutCancel(ctx), tripID, token); err != nil {
				s.logger.Warn("failed to release trip lock", "trip_id", tripID, "error", err)
			}
		}()
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expired := s.hideAbandoned(trip, now)
	if expired {
		s.cancelInflight(trip.ID)
	}

	changed, fnErr := fn(trip, now)
	if changed || expired {
		if err := s.tripRepo.Update(ctx, trip); err != nil {
			return nil, err
		}
	}
	if fnErr != nil {
		return nil, fnErr
	}
	return trip, nil
}

// hideAbandoned applies the discard-on-abandon policy in memory and reports
// whether a session was dropped.
func (s *TripService) hideAbandoned(trip *domain.Trip, now time.Time) bool {
	if trip.Verification == nil || !trip.Verification.Expired(now, s.cfg.VerificationTTL) {
		return false
	}
	trip.Verification = nil
	return true
}

func (s *TripService) cancelInflight(tripID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[tripID]; ok {
		cur.cancel()
		delete(s.inflight, tripID)
	}
}

func (s *TripService) notify(ctx context.Context, typ NotificationType, trip *domain.Trip) {
	if s.notificationService != nil {
		s.notificationService.NotifyTrip(ctx, typ, trip)
	}
}

func ownTrip(actor *domain.Identity, trip *domain.Trip) error {
	if trip.DriverID != actor.ID {
		return ErrTripNotAssignedToDriver
	}
	return nil
}
