package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleet/internal/domain"
)

func TestAuthorize(t *testing.T) {
	t.Parallel()

	driver := &domain.Identity{ID: "d1", Role: domain.RoleDriver}

	assert.ErrorIs(t, Authorize(nil, domain.RoleAdmin), ErrNotAuthenticated)
	assert.ErrorIs(t, Authorize(&domain.Identity{ID: "x", Role: "auditor"}, domain.RoleAdmin), ErrNotAuthenticated)
	assert.ErrorIs(t, Authorize(driver, domain.RoleAdmin, domain.RoleSupplier), ErrAuthorizationDenied)
	assert.ErrorIs(t, Authorize(driver), ErrAuthorizationDenied, "empty set allows nobody")
	assert.NoError(t, Authorize(driver, domain.RoleAdmin, domain.RoleDriver))
}

func TestCurrentRole(t *testing.T) {
	t.Parallel()

	_, ok := CurrentRole(nil)
	assert.False(t, ok)

	role, ok := CurrentRole(&domain.Identity{Role: domain.RoleSupplier})
	assert.True(t, ok)
	assert.Equal(t, domain.RoleSupplier, role)
}
