package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// ExpenseRepository implements repository.ExpenseRepository using PostgreSQL.
type ExpenseRepository struct {
	db *sql.DB
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

const expenseColumns = `id, driver_id, vehicle_id, trip_id, category, amount_paise, proof_url, note,
	status, decided_by, decided_at, created_at`

// Create persists a new expense.
func (r *ExpenseRepository) Create(ctx context.Context, e *domain.Expense) error {
	query := `INSERT INTO expenses (` + expenseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.DriverID,
		e.VehicleID,
		e.TripID,
		e.Category,
		e.Amount,
		e.ProofURL,
		e.Note,
		e.Status,
		e.DecidedBy,
		nullTime(e.DecidedAt),
		e.CreatedAt,
	)
	return err
}

// GetByID retrieves an expense by ID.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`

	e, err := scanExpense(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List retrieves expenses matching filter, newest first.
func (r *ExpenseRepository) List(ctx context.Context, filter repository.ExpenseFilter) ([]*domain.Expense, error) {
	var (
		conds []string
		args  []any
	)
	if filter.DriverID != "" {
		args = append(args, filter.DriverID)
		conds = append(conds, "driver_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT 200`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []*domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// UpdateStatus records the decision, guarded on the current status.
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, e *domain.Expense, from domain.ExpenseStatus) error {
	query := `UPDATE expenses SET status = $1, decided_by = $2, decided_at = $3 WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, e.Status, e.DecidedBy, nullTime(e.DecidedAt), e.ID, from)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanExpense(row scanner) (*domain.Expense, error) {
	var (
		e         domain.Expense
		decidedAt sql.NullTime
	)
	if err := row.Scan(
		&e.ID, &e.DriverID, &e.VehicleID, &e.TripID, &e.Category, &e.Amount, &e.ProofURL, &e.Note,
		&e.Status, &e.DecidedBy, &decidedAt, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		e.DecidedAt = decidedAt.Time
	}
	return &e, nil
}

// Ensure ExpenseRepository implements repository.ExpenseRepository.
var _ repository.ExpenseRepository = (*ExpenseRepository)(nil)
