package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// VehicleResolver resolves which vehicle scopes a viewer's documents.
type VehicleResolver interface {
	// VehicleForDriver returns the vehicle assigned to the driver, or "" if none.
	VehicleForDriver(ctx context.Context, driverID string) (string, error)

	// VehicleForShipment returns the vehicle carrying a supplier's shipment.
	VehicleForShipment(ctx context.Context, supplierID, shipmentID string) (string, error)
}

// DocumentService serves the document vault.
type DocumentService struct {
	docRepo  repository.DocumentRepository
	vehicles VehicleResolver
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(docRepo repository.DocumentRepository, vehicles VehicleResolver) *DocumentService {
	return &DocumentService{docRepo: docRepo, vehicles: vehicles}
}

// CreateDocumentRequest contains the parameters for registering a document.
type CreateDocumentRequest struct {
	Name         string
	Category     domain.DocumentCategory
	ExpiryDate   time.Time
	OwnerVehicle string
}

// CreateDocument registers a document. Only admins may do this.
func (s *DocumentService) CreateDocument(ctx context.Context, actor *domain.Identity, req CreateDocumentRequest) (*domain.Document, error) {
	if err := Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || !req.Category.Valid() || req.ExpiryDate.IsZero() {
		return nil, ErrInvalidDocument
	}

	doc := &domain.Document{
		ID:           uuid.New().String(),
		Name:         name,
		Category:     req.Category,
		ExpiryDate:   calendarDate(req.ExpiryDate),
		OwnerVehicle: strings.TrimSpace(req.OwnerVehicle),
		CreatedAt:    time.Now(),
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DocumentView is the classified document list for one viewer.
type DocumentView struct {
	Documents []domain.ClassifiedDocument
	Summary   ExpirySummary
}

// ListForViewer returns the documents visible to viewer, classified at reference.
// shipmentID selects the shipment a supplier is looking at and is ignored for
// other roles.
func (s *DocumentService) ListForViewer(ctx context.Context, viewer *domain.Identity, shipmentID string, reference time.Time) (*DocumentView, error) {
	if err := Authorize(viewer, domain.RoleAdmin, domain.RoleDriver, domain.RoleSupplier); err != nil {
		return nil, err
	}

	vehicleID, err := s.resolveVehicle(ctx, viewer, shipmentID)
	if err != nil {
		return nil, err
	}

	docs, err := s.docRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	classified := ClassifyDocuments(viewer, docs, vehicleID, reference)
	visible := classified[:0]
	for _, d := range classified {
		if d.Visible {
			visible = append(visible, d)
		}
	}

	return &DocumentView{Documents: visible, Summary: Summarize(visible)}, nil
}

// GetForViewer returns one classified document. A document the viewer may not
// see is reported as not found.
func (s *DocumentService) GetForViewer(ctx context.Context, viewer *domain.Identity, documentID, shipmentID string, reference time.Time) (*domain.ClassifiedDocument, error) {
	if err := Authorize(viewer, domain.RoleAdmin, domain.RoleDriver, domain.RoleSupplier); err != nil {
		return nil, err
	}

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	vehicleID, err := s.resolveVehicle(ctx, viewer, shipmentID)
	if err != nil {
		return nil, err
	}

	classified := ClassifyDocuments(viewer, []*domain.Document{doc}, vehicleID, reference)[0]
	if !classified.Visible {
		return nil, repository.ErrNotFound
	}
	return &classified, nil
}

func (s *DocumentService) resolveVehicle(ctx context.Context, viewer *domain.Identity, shipmentID string) (string, error) {
	if s.vehicles == nil {
		return "", nil
	}

	switch viewer.Role {
	case domain.RoleDriver:
		vehicleID, err := s.vehicles.VehicleForDriver(ctx, viewer.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return vehicleID, err
	case domain.RoleSupplier:
		if shipmentID == "" {
			return "", nil
		}
		vehicleID, err := s.vehicles.VehicleForShipment(ctx, viewer.ID, shipmentID)
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return vehicleID, err
	default:
		return "", nil
	}
}
