package repository

import (
	"context"

	"fleet/internal/domain"
)

// ExpenseFilter narrows an expense listing. Zero fields match everything.
type ExpenseFilter struct {
	DriverID string
	Status   domain.ExpenseStatus
}

// ExpenseRepository defines the persistence operations for expense claims.
type ExpenseRepository interface {
	// Create persists a new expense.
	Create(ctx context.Context, expense *domain.Expense) error

	// GetByID retrieves an expense by ID.
	GetByID(ctx context.Context, id string) (*domain.Expense, error)

	// List retrieves expenses matching filter, newest first.
	List(ctx context.Context, filter ExpenseFilter) ([]*domain.Expense, error)

	// UpdateStatus records the decision on expense, provided it is still in
	// status from. Returns ErrNotFound if no such expense is in that status.
	UpdateStatus(ctx context.Context, expense *domain.Expense, from domain.ExpenseStatus) error
}
