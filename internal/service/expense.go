package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// maxExpenseAmount caps a single claim at ₹10,00,000.
const maxExpenseAmount = 100_000_000

// ExpenseService runs the driver expense approval hub: drivers submit and
// track their own claims, admins approve or reject pending ones.
type ExpenseService struct {
	expenseRepo         repository.ExpenseRepository
	vehicles            VehicleResolver
	notificationService *NotificationService
	logger              *slog.Logger
}

// NewExpenseService creates a new ExpenseService. vehicles may be nil, in
// which case claims carry no vehicle.
func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	vehicles VehicleResolver,
	notificationService *NotificationService,
	logger *slog.Logger,
) *ExpenseService {
	return &ExpenseService{
		expenseRepo:         expenseRepo,
		vehicles:            vehicles,
		notificationService: notificationService,
		logger:              logger,
	}
}

// SubmitExpenseRequest contains the parameters for an expense claim.
type SubmitExpenseRequest struct {
	TripID   string
	Category domain.ExpenseCategory
	Amount   int64 // Paise.
	ProofURL string
	Note     string
}

// SubmitExpense files a Pending claim for the calling driver.
func (s *ExpenseService) SubmitExpense(ctx context.Context, actor *domain.Identity, req SubmitExpenseRequest) (*domain.Expense, error) {
	if err := Authorize(actor, domain.RoleDriver); err != nil {
		return nil, err
	}

	if !req.Category.Valid() || req.Amount <= 0 || req.Amount > maxExpenseAmount {
		return nil, ErrInvalidExpense
	}

	vehicleID := ""
	if s.vehicles != nil {
		v, err := s.vehicles.VehicleForDriver(ctx, actor.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		vehicleID = v
	}

	expense := &domain.Expense{
		ID:        uuid.New().String(),
		DriverID:  actor.ID,
		VehicleID: vehicleID,
		TripID:    strings.TrimSpace(req.TripID),
		Category:  req.Category,
		Amount:    req.Amount,
		ProofURL:  strings.TrimSpace(req.ProofURL),
		Note:      strings.TrimSpace(req.Note),
		Status:    domain.ExpenseStatusPending,
		CreatedAt: time.Now(),
	}

	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		return nil, err
	}

	s.logger.Info("expense submitted", "expense_id", expense.ID, "driver_id", actor.ID, "category", expense.Category, "amount_paise", expense.Amount)
	s.notificationService.NotifyExpense(ctx, NotificationExpenseSubmitted, expense)
	return expense, nil
}

// ExpenseView is an expense listing with its pending totals.
type ExpenseView struct {
	Expenses      []*domain.Expense
	Pending       int
	PendingAmount int64
}

// ListExpenses returns every claim to admins and the caller's own claims to
// drivers. status filters the listing when set.
func (s *ExpenseService) ListExpenses(ctx context.Context, actor *domain.Identity, status domain.ExpenseStatus) (*ExpenseView, error) {
	if err := Authorize(actor, domain.RoleAdmin, domain.RoleDriver); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, ErrInvalidExpense
	}

	filter := repository.ExpenseFilter{Status: status}
	if actor.Role == domain.RoleDriver {
		filter.DriverID = actor.ID
	}

	expenses, err := s.expenseRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	view := &ExpenseView{Expenses: expenses}
	for _, e := range expenses {
		if e.Status == domain.ExpenseStatusPending {
			view.Pending++
			view.PendingAmount += e.Amount
		}
	}
	return view, nil
}

// GetExpense returns one claim. A driver asking for another driver's claim
// gets ErrNotFound.
func (s *ExpenseService) GetExpense(ctx context.Context, actor *domain.Identity, expenseID string) (*domain.Expense, error) {
	if err := Authorize(actor, domain.RoleAdmin, domain.RoleDriver); err != nil {
		return nil, err
	}

	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleDriver && expense.DriverID != actor.ID {
		return nil, repository.ErrNotFound
	}
	return expense, nil
}

// ApproveExpense moves a Pending claim to Approved.
func (s *ExpenseService) ApproveExpense(ctx context.Context, actor *domain.Identity, expenseID string) (*domain.Expense, error) {
	return s.decide(ctx, actor, expenseID, domain.ExpenseStatusApproved)
}

// RejectExpense moves a Pending claim to Rejected.
func (s *ExpenseService) RejectExpense(ctx context.Context, actor *domain.Identity, expenseID string) (*domain.Expense, error) {
	return s.decide(ctx, actor, expenseID, domain.ExpenseStatusRejected)
}

func (s *ExpenseService) decide(ctx context.Context, actor *domain.Identity, expenseID string, to domain.ExpenseStatus) (*domain.Expense, error) {
	if err := Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	trigger := "approve expense"
	if to == domain.ExpenseStatusRejected {
		trigger = "reject expense"
	}
	if expense.Status != domain.ExpenseStatusPending {
		return nil, invalidExpenseTransition(trigger, expense.Status)
	}

	expense.Status = to
	expense.DecidedBy = actor.ID
	expense.DecidedAt = time.Now()

	if err := s.expenseRepo.UpdateStatus(ctx, expense, domain.ExpenseStatusPending); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Decided concurrently by another admin.
			return nil, invalidExpenseTransition(trigger, "DECIDED")
		}
		return nil, err
	}

	s.logger.Info("expense decided", "expense_id", expense.ID, "status", to, "admin_id", actor.ID)
	typ := NotificationExpenseApproved
	if to == domain.ExpenseStatusRejected {
		typ = NotificationExpenseRejected
	}
	s.notificationService.NotifyExpense(ctx, typ, expense)
	return expense, nil
}
