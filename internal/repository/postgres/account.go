package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// ResolveAccount returns the account ID for a role and display name.
func (r *AccountRepository) ResolveAccount(ctx context.Context, role domain.Role, name string) (string, error) {
	query := `SELECT id FROM accounts WHERE role = $1 AND lower(display_name) = lower($2)`
	return r.queryID(ctx, query, role, name)
}

// VehicleForDriver returns the vehicle currently assigned to a driver.
func (r *AccountRepository) VehicleForDriver(ctx context.Context, driverID string) (string, error) {
	query := `SELECT vehicle_id FROM vehicle_assignments WHERE driver_id = $1 AND released_at IS NULL ORDER BY assigned_at DESC LIMIT 1`
	return r.queryID(ctx, query, driverID)
}

// VehicleForShipment returns the vehicle carrying a supplier's shipment.
func (r *AccountRepository) VehicleForShipment(ctx context.Context, supplierID, shipmentID string) (string, error) {
	query := `SELECT vehicle_id FROM shipments WHERE id = $1 AND supplier_id = $2`
	return r.queryID(ctx, query, shipmentID, supplierID)
}

func (r *AccountRepository) queryID(ctx context.Context, query string, args ...any) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Ensure AccountRepository implements repository.AccountRepository.
var _ repository.AccountRepository = (*AccountRepository)(nil)
