package redis

import "fleet/internal/service"

// Ensure concrete types implement the service interfaces.
var (
	_ service.SessionStore     = (*SessionStore)(nil)
	_ service.OTPStore         = (*OTPStore)(nil)
	_ service.ProximityChecker = (*BayStore)(nil)
	_ service.TripLocker       = (*LockStore)(nil)
)
