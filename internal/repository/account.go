package repository

import (
	"context"

	"fleet/internal/domain"
)

// AccountRepository resolves logins and vehicle assignments.
type AccountRepository interface {
	// ResolveAccount returns the account ID for a role and display name.
	ResolveAccount(ctx context.Context, role domain.Role, name string) (string, error)

	// VehicleForDriver returns the vehicle currently assigned to a driver.
	VehicleForDriver(ctx context.Context, driverID string) (string, error)

	// VehicleForShipment returns the vehicle carrying a supplier's shipment.
	VehicleForShipment(ctx context.Context, supplierID, shipmentID string) (string, error)
}
