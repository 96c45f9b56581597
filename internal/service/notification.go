package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fleet/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTripScheduled        NotificationType = "trip.scheduled"
	NotificationTripReady            NotificationType = "trip.ready"
	NotificationVerificationOpened   NotificationType = "trip.verification.opened"
	NotificationVerificationFailed   NotificationType = "trip.verification.failed"
	NotificationVerificationCanceled NotificationType = "trip.verification.cancelled"
	NotificationTripActive           NotificationType = "trip.active"
	NotificationTripEndRequested     NotificationType = "trip.end_requested"
	NotificationTripEnded            NotificationType = "trip.ended"
	NotificationDocumentExpiry       NotificationType = "document.expiry"
	NotificationExpenseSubmitted     NotificationType = "expense.submitted"
	NotificationExpenseApproved      NotificationType = "expense.approved"
	NotificationExpenseRejected      NotificationType = "expense.rejected"
)

// Notification is a read-only projection of a core state change.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipient_id,omitempty"` // Driver or account ID.
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Publisher delivers notifications to the presentation layer.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// NotificationService handles notification delivery.
type NotificationService struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewNotificationService creates a new NotificationService. publisher may be
// nil, in which case notifications are only logged.
func NewNotificationService(publisher Publisher, logger *slog.Logger) *NotificationService {
	return &NotificationService{publisher: publisher, logger: logger}
}

func tripData(trip *domain.Trip) map[string]any {
	data := map[string]any{
		"trip_id":     trip.ID,
		"state":       trip.State,
		"vehicle_id":  trip.VehicleID,
		"origin":      trip.Route.Origin,
		"destination": trip.Route.Destination,
	}
	if trip.Verification != nil {
		data["verification_id"] = trip.Verification.ID
		data["verification_method"] = trip.Verification.Method
		data["verification_status"] = trip.Verification.Status
	}
	return data
}

// NotifyTrip publishes a trip state change addressed to the trip's driver.
func (s *NotificationService) NotifyTrip(ctx context.Context, typ NotificationType, trip *domain.Trip) {
	s.send(ctx, Notification{
		Type:        typ,
		RecipientID: trip.DriverID,
		Message:     tripMessage(typ, trip),
		Data:        tripData(trip),
	})
}

func tripMessage(typ NotificationType, trip *domain.Trip) string {
	switch typ {
	case NotificationTripScheduled:
		return fmt.Sprintf("Trip %s -> %s scheduled", trip.Route.Origin, trip.Route.Destination)
	case NotificationTripReady:
		return "Load confirmed. Trip is ready to start"
	case NotificationVerificationOpened:
		return "Verify at the loading bay to start the trip"
	case NotificationVerificationFailed:
		return "Verification failed. Try again"
	case NotificationVerificationCanceled:
		return "Verification discarded"
	case NotificationTripActive:
		return fmt.Sprintf("Trip to %s started", trip.Route.Destination)
	case NotificationTripEndRequested:
		return "Confirm to end the trip"
	case NotificationTripEnded:
		return fmt.Sprintf("Trip to %s ended", trip.Route.Destination)
	default:
		return string(typ)
	}
}

// NotifyDocumentExpiry raises an alert for a document that is expired or about to expire.
func (s *NotificationService) NotifyDocumentExpiry(ctx context.Context, doc domain.ClassifiedDocument) {
	var message string
	if doc.Classification.Level == domain.ExpiryExpired {
		message = fmt.Sprintf("%s expired", doc.Document.Name)
	} else {
		message = fmt.Sprintf("%s expiring in %dd", doc.Document.Name, doc.Classification.DaysLeft)
	}
	if doc.Document.OwnerVehicle != "" {
		message += " for " + doc.Document.OwnerVehicle
	}

	s.send(ctx, Notification{
		Type:    NotificationDocumentExpiry,
		Message: message,
		Data: map[string]any{
			"document_id": doc.Document.ID,
			"category":    doc.Document.Category,
			"vehicle_id":  doc.Document.OwnerVehicle,
			"level":       doc.Classification.Level,
			"days_left":   doc.Classification.DaysLeft,
		},
	})
}

// NotifyExpense publishes an expense claim change addressed to its driver.
func (s *NotificationService) NotifyExpense(ctx context.Context, typ NotificationType, e *domain.Expense) {
	var message string
	switch typ {
	case NotificationExpenseSubmitted:
		message = fmt.Sprintf("%s expense of %s awaiting approval", e.Category, formatRupees(e.Amount))
	case NotificationExpenseApproved:
		message = fmt.Sprintf("%s expense of %s approved", e.Category, formatRupees(e.Amount))
	case NotificationExpenseRejected:
		message = fmt.Sprintf("%s expense of %s rejected", e.Category, formatRupees(e.Amount))
	default:
		message = string(typ)
	}

	s.send(ctx, Notification{
		Type:        typ,
		RecipientID: e.DriverID,
		Message:     message,
		Data: map[string]any{
			"expense_id":   e.ID,
			"category":     e.Category,
			"amount_paise": e.Amount,
			"status":       e.Status,
			"vehicle_id":   e.VehicleID,
			"trip_id":      e.TripID,
		},
	})
}

func formatRupees(paise int64) string {
	return fmt.Sprintf("₹%d.%02d", paise/100, paise%100)
}

// send delivers a notification. Delivery failures are logged and never
// propagate to the operation that caused them.
func (s *NotificationService) send(ctx context.Context, n Notification) {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()

	s.logger.Info("notification", "type", n.Type, "recipient", n.RecipientID, "message", n.Message)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.logger.Warn("failed to publish notification", "type", n.Type, "error", err)
	}
}
