package domain

import "time"

// ExpenseCategory is what a driver spent money on during a trip.
type ExpenseCategory string

const (
	ExpenseFuel   ExpenseCategory = "Fuel"
	ExpenseToll   ExpenseCategory = "Toll"
	ExpenseFood   ExpenseCategory = "Food"
	ExpenseRepair ExpenseCategory = "Repair"
	ExpenseOther  ExpenseCategory = "Other"
)

// Valid reports whether c is a known category.
func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseFuel, ExpenseToll, ExpenseFood, ExpenseRepair, ExpenseOther:
		return true
	}
	return false
}

// ExpenseStatus is the approval state of an expense claim.
type ExpenseStatus string

const (
	ExpenseStatusPending  ExpenseStatus = "PENDING"
	ExpenseStatusApproved ExpenseStatus = "APPROVED"
	ExpenseStatusRejected ExpenseStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s ExpenseStatus) Valid() bool {
	switch s {
	case ExpenseStatusPending, ExpenseStatusApproved, ExpenseStatusRejected:
		return true
	}
	return false
}

// Expense is a driver's claim for money spent on the road.
// Only a Pending expense can be decided; Approved and Rejected are terminal.
type Expense struct {
	ID        string
	DriverID  string
	VehicleID string // Driver's assigned vehicle at submission, if any.
	TripID    string // Optional.
	Category  ExpenseCategory
	Amount    int64 // Paise.
	ProofURL  string
	Note      string
	Status    ExpenseStatus
	DecidedBy string
	DecidedAt time.Time
	CreatedAt time.Time
}
