package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/repository"
	"fleet/internal/service"
)

type expenseFixture struct {
	service   *service.ExpenseService
	expenses  *MockExpenseRepository
	publisher *MockPublisher
}

func newExpenseFixture() *expenseFixture {
	accounts := NewMockAccountRepository()
	accounts.AssignVehicle(driver.ID, "MH12AB1234")

	f := &expenseFixture{
		expenses:  NewMockExpenseRepository(),
		publisher: NewMockPublisher(),
	}
	notifications := service.NewNotificationService(f.publisher, discardLogger())
	f.service = service.NewExpenseService(f.expenses, accounts, notifications, discardLogger())
	return f
}

func (f *expenseFixture) submit(t *testing.T, actor *domain.Identity, category domain.ExpenseCategory, amount int64) *domain.Expense {
	t.Helper()
	e, err := f.service.SubmitExpense(context.Background(), actor, service.SubmitExpenseRequest{Category: category, Amount: amount})
	require.NoError(t, err)
	return e
}

func TestExpense_DriverSubmitsPendingClaim(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()

	e, err := f.service.SubmitExpense(context.Background(), driver, service.SubmitExpenseRequest{
		TripID:   " trip-7 ",
		Category: domain.ExpenseToll,
		Amount:   45000,
		ProofURL: "https://receipts.example/toll.jpg",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, domain.ExpenseStatusPending, e.Status)
	assert.Equal(t, driver.ID, e.DriverID)
	assert.Equal(t, "MH12AB1234", e.VehicleID)
	assert.Equal(t, "trip-7", e.TripID)
	assert.Equal(t, 1, f.publisher.Count(service.NotificationExpenseSubmitted))
}

func TestExpense_DriverWithoutVehicleStillSubmits(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()

	e := f.submit(t, other, domain.ExpenseFood, 12000)
	assert.Empty(t, e.VehicleID)
}

func TestExpense_SubmitValidation(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	ctx := context.Background()

	_, err := f.service.SubmitExpense(ctx, admin, service.SubmitExpenseRequest{Category: domain.ExpenseFuel, Amount: 100})
	assert.ErrorIs(t, err, service.ErrAuthorizationDenied)

	_, err = f.service.SubmitExpense(ctx, nil, service.SubmitExpenseRequest{Category: domain.ExpenseFuel, Amount: 100})
	assert.ErrorIs(t, err, service.ErrNotAuthenticated)

	for name, req := range map[string]service.SubmitExpenseRequest{
		"unknown category": {Category: "Parking", Amount: 100},
		"zero amount":      {Category: domain.ExpenseFuel},
		"negative amount":  {Category: domain.ExpenseFuel, Amount: -5},
		"over the cap":     {Category: domain.ExpenseRepair, Amount: 100_000_001},
	} {
		_, err := f.service.SubmitExpense(ctx, driver, req)
		assert.ErrorIs(t, err, service.ErrInvalidExpense, name)
	}

	assert.Zero(t, f.publisher.Count(service.NotificationExpenseSubmitted))
}

func TestExpense_DriverListsOwnClaimsOnly(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	ctx := context.Background()

	first := f.submit(t, driver, domain.ExpenseFuel, 250000)
	second := f.submit(t, driver, domain.ExpenseToll, 45000)
	f.submit(t, other, domain.ExpenseFood, 12000)

	view, err := f.service.ListExpenses(ctx, driver, "")
	require.NoError(t, err)
	require.Len(t, view.Expenses, 2)
	assert.Equal(t, second.ID, view.Expenses[0].ID, "newest first")
	assert.Equal(t, first.ID, view.Expenses[1].ID)
	assert.Equal(t, 2, view.Pending)
	assert.Equal(t, int64(295000), view.PendingAmount)
}

func TestExpense_AdminSeesAllWithPendingTotals(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	ctx := context.Background()

	fuel := f.submit(t, driver, domain.ExpenseFuel, 250000)
	f.submit(t, driver, domain.ExpenseToll, 45000)
	f.submit(t, other, domain.ExpenseFood, 12000)
	_, err := f.service.ApproveExpense(ctx, admin, fuel.ID)
	require.NoError(t, err)

	view, err := f.service.ListExpenses(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, view.Expenses, 3)
	assert.Equal(t, 2, view.Pending)
	assert.Equal(t, int64(57000), view.PendingAmount)

	approved, err := f.service.ListExpenses(ctx, admin, domain.ExpenseStatusApproved)
	require.NoError(t, err)
	require.Len(t, approved.Expenses, 1)
	assert.Equal(t, fuel.ID, approved.Expenses[0].ID)
	assert.Zero(t, approved.Pending)

	_, err = f.service.ListExpenses(ctx, admin, "PAID")
	assert.ErrorIs(t, err, service.ErrInvalidExpense)
}

func TestExpense_SupplierIsDenied(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	ctx := context.Background()
	e := f.submit(t, driver, domain.ExpenseFuel, 1000)

	_, err := f.service.ListExpenses(ctx, supplier, "")
	assert.ErrorIs(t, err, service.ErrAuthorizationDenied)

	_, err = f.service.GetExpense(ctx, supplier, e.ID)
	assert.ErrorIs(t, err, service.ErrAuthorizationDenied)
}

func TestExpense_GetHidesOtherDriversClaims(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	ctx := context.Background()
	e := f.submit(t, driver, domain.ExpenseFuel, 1000)

	got, err := f.service.GetExpense(ctx, driver, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	_, err = f.service.GetExpense(ctx, other, e.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.service.GetExpense(ctx, admin, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExpense_DecisionsAreAdminOnly(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	ctx := context.Background()
	e := f.submit(t, driver, domain.ExpenseRepair, 800000)

	_, err := f.service.ApproveExpense(ctx, driver, e.ID)
	assert.ErrorIs(t, err, service.ErrAuthorizationDenied)

	_, err = f.service.RejectExpense(ctx, supplier, e.ID)
	assert.ErrorIs(t, err, service.ErrAuthorizationDenied)

	assert.Zero(t, f.expenses.UpdateCallCount)
}

func TestExpense_ApproveRecordsDecision(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	ctx := context.Background()
	e := f.submit(t, driver, domain.ExpenseRepair, 800000)

	decided, err := f.service.ApproveExpense(ctx, admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseStatusApproved, decided.Status)
	assert.Equal(t, admin.ID, decided.DecidedBy)
	assert.False(t, decided.DecidedAt.IsZero())

	stored, err := f.service.GetExpense(ctx, driver, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseStatusApproved, stored.Status)
	assert.Equal(t, 1, f.publisher.Count(service.NotificationExpenseApproved))
}

func TestExpense_OnlyPendingCanBeDecided(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	ctx := context.Background()
	e := f.submit(t, driver, domain.ExpenseFood, 9000)

	_, err := f.service.RejectExpense(ctx, admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.publisher.Count(service.NotificationExpenseRejected))

	_, err = f.service.ApproveExpense(ctx, admin, e.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = f.service.RejectExpense(ctx, admin, e.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	assert.Zero(t, f.publisher.Count(service.NotificationExpenseApproved))
	assert.Equal(t, 1, f.publisher.Count(service.NotificationExpenseRejected))
}

func TestExpense_ConcurrentDecisionIsInvalidTransition(t *testing.T) {
	t.Parallel()
	f := newExpenseFixture()
	e := f.submit(t, driver, domain.ExpenseFuel, 1000)

	// Another admin rejects between our read and our write.
	f.expenses.BeforeUpdate = func(id string) { f.expenses.SetStatus(id, domain.ExpenseStatusRejected) }

	_, err := f.service.ApproveExpense(context.Background(), admin, e.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
	assert.Zero(t, f.publisher.Count(service.NotificationExpenseApproved))
}
