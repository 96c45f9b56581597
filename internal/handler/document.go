package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/middleware"
	"fleet/internal/service"
)

const dateLayout = "2006-01-02"

// DocumentHandler handles the document vault.
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// CreateDocumentRequest is the HTTP request body for registering a document.
type CreateDocumentRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	ExpiryDate   string `json:"expiry_date"` // YYYY-MM-DD
	OwnerVehicle string `json:"owner_vehicle,omitempty"`
}

// DocumentResponse is a document with its classification at request time.
type DocumentResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	ExpiryDate   string `json:"expiry_date"`
	OwnerVehicle string `json:"owner_vehicle,omitempty"`
	Level        string `json:"level,omitempty"`
	DaysLeft     *int   `json:"days_left,omitempty"`
	Visible      bool   `json:"visible,omitempty"`
}

// SummaryResponse counts the listed documents per expiry level.
type SummaryResponse struct {
	Expired  int `json:"expired"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Valid    int `json:"valid"`
}

// ListDocumentsResponse is the HTTP response for listing documents.
type ListDocumentsResponse struct {
	AsOf      string             `json:"as_of"`
	Documents []DocumentResponse `json:"documents"`
	Summary   SummaryResponse    `json:"summary"`
}

func toDocumentResponse(doc *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:           doc.ID,
		Name:         doc.Name,
		Category:     string(doc.Category),
		ExpiryDate:   doc.ExpiryDate.Format(dateLayout),
		OwnerVehicle: doc.OwnerVehicle,
	}
}

// CreateDocument handles POST /v1/documents
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	expiry, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		respondError(c, fmt.Errorf("%w: expiry_date must be YYYY-MM-DD", service.ErrInvalidDocument))
		return
	}

	doc, err := h.documentService.CreateDocument(c.Request.Context(), middleware.Identity(c), service.CreateDocumentRequest{
		Name:         req.Name,
		Category:     domain.DocumentCategory(req.Category),
		ExpiryDate:   expiry,
		OwnerVehicle: req.OwnerVehicle,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDocumentResponse(doc))
}

// ListDocuments handles GET /v1/documents?shipment=<id>&as_of=<YYYY-MM-DD>
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	reference, ok := referenceDate(c)
	if !ok {
		return
	}

	view, err := h.documentService.ListForViewer(c.Request.Context(), middleware.Identity(c), c.Query("shipment"), reference)
	if err != nil {
		respondError(c, err)
		return
	}

	response := ListDocumentsResponse{
		AsOf:      reference.Format(dateLayout),
		Documents: make([]DocumentResponse, 0, len(view.Documents)),
		Summary: SummaryResponse{
			Expired:  view.Summary.Expired,
			Critical: view.Summary.Critical,
			Warning:  view.Summary.Warning,
			Valid:    view.Summary.Valid,
		},
	}
	for _, d := range view.Documents {
		response.Documents = append(response.Documents, toClassifiedResponse(d))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetDocument handles GET /v1/documents/:id?shipment=<id>&as_of=<YYYY-MM-DD>
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	reference, ok := referenceDate(c)
	if !ok {
		return
	}

	doc, err := h.documentService.GetForViewer(c.Request.Context(), middleware.Identity(c), c.Param("id"), c.Query("shipment"), reference)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toClassifiedResponse(*doc))
}

// referenceDate reads ?as_of, defaulting to now. It writes the error response
// and returns false when the date is malformed.
func referenceDate(c *gin.Context) (time.Time, bool) {
	asOf := c.Query("as_of")
	if asOf == "" {
		return time.Now(), true
	}
	t, err := time.Parse(dateLayout, asOf)
	if err != nil {
		respondError(c, fmt.Errorf("%w: as_of must be YYYY-MM-DD", errInvalidBody))
		return time.Time{}, false
	}
	return t, true
}

func toClassifiedResponse(d domain.ClassifiedDocument) DocumentResponse {
	dr := toDocumentResponse(&d.Document)
	dr.Level = string(d.Classification.Level)
	dr.Visible = d.Visible
	if d.Classification.Level == domain.ExpiryCritical || d.Classification.Level == domain.ExpiryWarning {
		days := d.Classification.DaysLeft
		dr.DaysLeft = &days
	}
	return dr
}
