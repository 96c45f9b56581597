package domain

import "time"

// Role is the role an authenticated caller acts under.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDriver   Role = "driver"
	RoleSupplier Role = "supplier"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDriver, RoleSupplier:
		return true
	}
	return false
}

// Identity is the authenticated caller. A nil *Identity is the anonymous caller.
type Identity struct {
	ID          string // Account/subject ID; matches Trip.DriverID for drivers.
	Role        Role
	DisplayName string
}

// Session binds an identity to a login. It is created on login and destroyed on logout.
type Session struct {
	ID        string
	Identity  Identity
	CreatedAt time.Time
	ExpiresAt time.Time
}
