package repository

import (
	"context"

	"fleet/internal/domain"
)

// DocumentRepository defines the persistence operations for vault documents.
type DocumentRepository interface {
	// Create persists a new document.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by ID.
	GetByID(ctx context.Context, id string) (*domain.Document, error)

	// GetAll retrieves all documents ordered by expiry date.
	GetAll(ctx context.Context) ([]*domain.Document, error)
}
