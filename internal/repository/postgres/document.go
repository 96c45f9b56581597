package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// DocumentRepository implements repository.DocumentRepository using PostgreSQL.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create persists a new document.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	query := `INSERT INTO documents (id, name, category, expiry_date, owner_vehicle, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.Name,
		doc.Category,
		doc.ExpiryDate,
		sql.NullString{String: doc.OwnerVehicle, Valid: doc.OwnerVehicle != ""},
		doc.CreatedAt,
	)
	return err
}

// GetByID retrieves a document by ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT id, name, category, expiry_date, owner_vehicle, created_at FROM documents WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetAll retrieves all documents ordered by expiry date.
func (r *DocumentRepository) GetAll(ctx context.Context) ([]*domain.Document, error) {
	query := `SELECT id, name, category, expiry_date, owner_vehicle, created_at FROM documents ORDER BY expiry_date ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var owner sql.NullString
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Category, &doc.ExpiryDate, &owner, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.OwnerVehicle = owner.String
	return &doc, nil
}

// Ensure DocumentRepository implements repository.DocumentRepository.
var _ repository.DocumentRepository = (*DocumentRepository)(nil)
