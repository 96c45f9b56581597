package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
// The open verification session lives in nullable columns of the trip row.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

const tripColumns = `id, driver_id, vehicle_id, bay_id, state, origin, destination,
	verification_id, verification_method, verification_status, verification_attempt_code,
	verification_attempts, verification_opened_at, verification_updated_at,
	end_requested_at, created_at, ready_at, started_at, ended_at`

// tripRow holds the nullable columns of a trip while scanning.
type tripRow struct {
	trip           domain.Trip
	verificationID sql.NullString
	method         sql.NullString
	status         sql.NullString
	attemptCode    sql.NullString
	attempts       sql.NullInt64
	openedAt       sql.NullTime
	updatedAt      sql.NullTime
	endRequestedAt sql.NullTime
	readyAt        sql.NullTime
	startedAt      sql.NullTime
	endedAt        sql.NullTime
}

func (r *tripRow) dest() []any {
	t := &r.trip
	return []any{
		&t.ID, &t.DriverID, &t.VehicleID, &t.BayID, &t.State, &t.Route.Origin, &t.Route.Destination,
		&r.verificationID, &r.method, &r.status, &r.attemptCode,
		&r.attempts, &r.openedAt, &r.updatedAt,
		&r.endRequestedAt, &t.CreatedAt, &r.readyAt, &r.startedAt, &r.endedAt,
	}
}

func (r *tripRow) toDomain() *domain.Trip {
	t := r.trip
	if r.verificationID.Valid {
		t.Verification = &domain.VerificationSession{
			ID:          r.verificationID.String,
			Method:      domain.VerificationMethod(r.method.String),
			Status:      domain.VerificationStatus(r.status.String),
			AttemptCode: r.attemptCode.String,
			Attempts:    int(r.attempts.Int64),
			OpenedAt:    r.openedAt.Time,
			UpdatedAt:   r.updatedAt.Time,
		}
	}
	t.EndRequestedAt = r.endRequestedAt.Time
	t.ReadyAt = r.readyAt.Time
	t.StartedAt = r.startedAt.Time
	t.EndedAt = r.endedAt.Time
	return &t
}

// tripArgs returns the column values in tripColumns order.
func tripArgs(t *domain.Trip) []any {
	var (
		verificationID, method, status, attemptCode sql.NullString
		attempts                                    sql.NullInt64
		openedAt, updatedAt                         sql.NullTime
	)
	if v := t.Verification; v != nil {
		verificationID = sql.NullString{String: v.ID, Valid: true}
		method = sql.NullString{String: string(v.Method), Valid: v.Method != ""}
		status = sql.NullString{String: string(v.Status), Valid: true}
		attemptCode = sql.NullString{String: v.AttemptCode, Valid: v.AttemptCode != ""}
		attempts = sql.NullInt64{Int64: int64(v.Attempts), Valid: true}
		openedAt = nullTime(v.OpenedAt)
		updatedAt = nullTime(v.UpdatedAt)
	}

	return []any{
		t.ID, t.DriverID, t.VehicleID, t.BayID, t.State, t.Route.Origin, t.Route.Destination,
		verificationID, method, status, attemptCode,
		attempts, openedAt, updatedAt,
		nullTime(t.EndRequestedAt), t.CreatedAt, nullTime(t.ReadyAt), nullTime(t.StartedAt), nullTime(t.EndedAt),
	}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.q.ExecContext(ctx, query, tripArgs(trip)...)
	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	var row tripRow
	err := r.q.QueryRowContext(ctx, query, id).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// GetAll retrieves all trips.
func (r *TripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips ORDER BY created_at DESC LIMIT 100`
	return r.list(ctx, query)
}

// GetByDriverID retrieves the trips assigned to a driver, newest first.
func (r *TripRepository) GetByDriverID(ctx context.Context, driverID string) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE driver_id = $1 ORDER BY created_at DESC LIMIT 100`
	return r.list(ctx, query, driverID)
}

func (r *TripRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Trip, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		var row tripRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		trips = append(trips, row.toDomain())
	}

	return trips, rows.Err()
}

// Update updates an existing trip.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	query := `
		UPDATE trips
		SET driver_id = $2, vehicle_id = $3, bay_id = $4, state = $5, origin = $6, destination = $7,
			verification_id = $8, verification_method = $9, verification_status = $10,
			verification_attempt_code = $11, verification_attempts = $12,
			verification_opened_at = $13, verification_updated_at = $14,
			end_requested_at = $15, created_at = $16, ready_at = $17, started_at = $18, ended_at = $19
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, tripArgs(trip)...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
