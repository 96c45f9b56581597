package service

import "fleet/internal/domain"

// CurrentRole returns the caller's role, or false for the anonymous caller.
func CurrentRole(id *domain.Identity) (domain.Role, bool) {
	if id == nil || !id.Role.Valid() {
		return "", false
	}
	return id.Role, true
}

// Authorize allows the caller only if it is authenticated and its role is one of required.
// It returns ErrNotAuthenticated for the anonymous caller and ErrAuthorizationDenied otherwise.
func Authorize(id *domain.Identity, required ...domain.Role) error {
	role, ok := CurrentRole(id)
	if !ok {
		return ErrNotAuthenticated
	}
	for _, r := range required {
		if r == role {
			return nil
		}
	}
	return ErrAuthorizationDenied
}
