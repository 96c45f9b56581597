package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/middleware"
	"fleet/internal/service"
)

// ExpenseHandler handles driver expense claims and their approval.
type ExpenseHandler struct {
	expenseService *service.ExpenseService
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenseService *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// SubmitExpenseRequest is the HTTP request body for an expense claim.
type SubmitExpenseRequest struct {
	TripID      string `json:"trip_id,omitempty"`
	Category    string `json:"category"`
	AmountPaise int64  `json:"amount_paise"`
	ProofURL    string `json:"proof_url,omitempty"`
	Note        string `json:"note,omitempty"`
}

// ExpenseResponse is the HTTP response for an expense claim.
type ExpenseResponse struct {
	ID          string `json:"id"`
	DriverID    string `json:"driver_id"`
	VehicleID   string `json:"vehicle_id,omitempty"`
	TripID      string `json:"trip_id,omitempty"`
	Category    string `json:"category"`
	AmountPaise int64  `json:"amount_paise"`
	ProofURL    string `json:"proof_url,omitempty"`
	Note        string `json:"note,omitempty"`
	Status      string `json:"status"`
	DecidedBy   string `json:"decided_by,omitempty"`
	DecidedAt   string `json:"decided_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ListExpensesResponse is the expense listing with pending totals.
type ListExpensesResponse struct {
	Expenses           []ExpenseResponse `json:"expenses"`
	Pending            int               `json:"pending"`
	PendingAmountPaise int64             `json:"pending_amount_paise"`
}

func toExpenseResponse(e *domain.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:          e.ID,
		DriverID:    e.DriverID,
		VehicleID:   e.VehicleID,
		TripID:      e.TripID,
		Category:    string(e.Category),
		AmountPaise: e.Amount,
		ProofURL:    e.ProofURL,
		Note:        e.Note,
		Status:      string(e.Status),
		DecidedBy:   e.DecidedBy,
		DecidedAt:   formatTime(e.DecidedAt),
		CreatedAt:   formatTime(e.CreatedAt),
	}
}

// SubmitExpense handles POST /v1/expenses
func (h *ExpenseHandler) SubmitExpense(c *gin.Context) {
	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	expense, err := h.expenseService.SubmitExpense(c.Request.Context(), middleware.Identity(c), service.SubmitExpenseRequest{
		TripID:   req.TripID,
		Category: domain.ExpenseCategory(req.Category),
		Amount:   req.AmountPaise,
		ProofURL: req.ProofURL,
		Note:     req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toExpenseResponse(expense))
}

// ListExpenses handles GET /v1/expenses?status=<PENDING|APPROVED|REJECTED>
func (h *ExpenseHandler) ListExpenses(c *gin.Context) {
	view, err := h.expenseService.ListExpenses(c.Request.Context(), middleware.Identity(c), domain.ExpenseStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	response := ListExpensesResponse{
		Expenses:           make([]ExpenseResponse, 0, len(view.Expenses)),
		Pending:            view.Pending,
		PendingAmountPaise: view.PendingAmount,
	}
	for _, e := range view.Expenses {
		response.Expenses = append(response.Expenses, toExpenseResponse(e))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetExpense handles GET /v1/expenses/:id
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	expense, err := h.expenseService.GetExpense(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toExpenseResponse(expense))
}

// ApproveExpense handles POST /v1/expenses/:id/approve
func (h *ExpenseHandler) ApproveExpense(c *gin.Context) {
	expense, err := h.expenseService.ApproveExpense(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toExpenseResponse(expense))
}

// RejectExpense handles POST /v1/expenses/:id/reject
func (h *ExpenseHandler) RejectExpense(c *gin.Context) {
	expense, err := h.expenseService.RejectExpense(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toExpenseResponse(expense))
}
