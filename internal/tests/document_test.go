package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/repository"
	"fleet/internal/service"
)

var vaultReference = time.Date(2025, time.April, 1, 9, 30, 0, 0, time.UTC)

func vaultDocs() []*domain.Document {
	day := func(n int) time.Time { return time.Date(2025, time.April, 1+n, 0, 0, 0, 0, time.UTC) }
	return []*domain.Document{
		{ID: "rc-1", Name: "RC", Category: domain.DocumentRC, ExpiryDate: day(200), OwnerVehicle: "MH12AB1234"},
		{ID: "ins-1", Name: "Insurance", Category: domain.DocumentInsurance, ExpiryDate: day(3), OwnerVehicle: "MH14CD5678"},
		{ID: "ins-2", Name: "Insurance", Category: domain.DocumentInsurance, ExpiryDate: day(-2), OwnerVehicle: "MH12AB1234"},
		{ID: "permit-1", Name: "National Permit", Category: domain.DocumentPermit, ExpiryDate: day(20)},
		{ID: "lic-1", Name: "Driving License", Category: domain.DocumentLicense, ExpiryDate: day(7), OwnerVehicle: "MH12AB1234"},
		{ID: "fit-1", Name: "Fitness", Category: domain.DocumentFitness, ExpiryDate: day(45), OwnerVehicle: "MH12AB1234"},
	}
}

func newDocumentService() *service.DocumentService {
	accounts := NewMockAccountRepository()
	accounts.AssignVehicle(driver.ID, "MH12AB1234")
	accounts.AddShipment(supplier.ID, "ship-9", "MH12AB1234")
	return service.NewDocumentService(NewMockDocumentRepository(vaultDocs()...), accounts)
}

func ids(docs []domain.ClassifiedDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Document.ID)
	}
	return out
}

func TestDocuments_AdminSeesVaultWithSummary(t *testing.T) {
	t.Parallel()
	svc := newDocumentService()

	view, err := svc.ListForViewer(context.Background(), admin, "", vaultReference)
	require.NoError(t, err)

	assert.Len(t, view.Documents, 6)
	assert.Equal(t, service.ExpirySummary{Expired: 1, Critical: 2, Warning: 1, Valid: 2}, view.Summary)
}

func TestDocuments_DriverSeesAssignedVehicleOnly(t *testing.T) {
	t.Parallel()
	svc := newDocumentService()

	view, err := svc.ListForViewer(context.Background(), driver, "", vaultReference)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"rc-1", "ins-2", "permit-1", "lic-1"}, ids(view.Documents))
	for _, d := range view.Documents {
		assert.True(t, d.Visible)
	}
}

func TestDocuments_DriverWithoutVehicleSeesUnownedOnly(t *testing.T) {
	t.Parallel()
	svc := newDocumentService()

	view, err := svc.ListForViewer(context.Background(), other, "", vaultReference)
	require.NoError(t, err)
	assert.Equal(t, []string{"permit-1"}, ids(view.Documents))
}

func TestDocuments_SupplierScopedToShipment(t *testing.T) {
	t.Parallel()
	svc := newDocumentService()
	ctx := context.Background()

	view, err := svc.ListForViewer(ctx, supplier, "ship-9", vaultReference)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rc-1", "ins-2"}, ids(view.Documents))

	view, err = svc.ListForViewer(ctx, supplier, "", vaultReference)
	require.NoError(t, err)
	assert.Empty(t, view.Documents, "no shipment, nothing visible")

	view, err = svc.ListForViewer(ctx, supplier, "someone-elses-shipment", vaultReference)
	require.NoError(t, err)
	assert.Empty(t, view.Documents)
}

func TestDocuments_AnonymousIsRejected(t *testing.T) {
	t.Parallel()
	svc := newDocumentService()

	_, err := svc.ListForViewer(context.Background(), nil, "", vaultReference)
	assert.ErrorIs(t, err, service.ErrNotAuthenticated)
}

func TestDocuments_ClassificationFollowsReferenceDate(t *testing.T) {
	t.Parallel()
	svc := newDocumentService()
	ctx := context.Background()

	levelOf := func(ref time.Time, id string) domain.ExpiryLevel {
		view, err := svc.ListForViewer(ctx, admin, "", ref)
		require.NoError(t, err)
		for _, d := range view.Documents {
			if d.Document.ID == id {
				return d.Classification.Level
			}
		}
		t.Fatalf("document %s not listed", id)
		return ""
	}

	assert.Equal(t, domain.ExpiryWarning, levelOf(vaultReference, "permit-1"))
	assert.Equal(t, domain.ExpiryCritical, levelOf(vaultReference.AddDate(0, 0, 14), "permit-1"))
	assert.Equal(t, domain.ExpiryExpired, levelOf(vaultReference.AddDate(0, 0, 21), "permit-1"))
}

func TestDocuments_CreateIsAdminOnly(t *testing.T) {
	t.Parallel()
	svc := newDocumentService()
	ctx := context.Background()
	req := service.CreateDocumentRequest{
		Name:       "PUC",
		Category:   domain.DocumentFitness,
		ExpiryDate: time.Date(2025, time.December, 31, 15, 0, 0, 0, time.UTC),
	}

	_, err := svc.CreateDocument(ctx, supplier, req)
	assert.ErrorIs(t, err, service.ErrAuthorizationDenied)

	doc, err := svc.CreateDocument(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), doc.ExpiryDate)

	_, err = svc.CreateDocument(ctx, admin, service.CreateDocumentRequest{Name: "X", Category: "Passport", ExpiryDate: req.ExpiryDate})
	assert.ErrorIs(t, err, service.ErrInvalidDocument)
}

func TestDocuments_GetHidesInvisibleDocuments(t *testing.T) {
	t.Parallel()
	svc := newDocumentService()
	ctx := context.Background()

	doc, err := svc.GetForViewer(ctx, driver, "lic-1", "", vaultReference)
	require.NoError(t, err)
	assert.Equal(t, domain.ExpiryCritical, doc.Classification.Level)
	assert.Equal(t, 7, doc.Classification.DaysLeft)

	_, err = svc.GetForViewer(ctx, driver, "ins-1", "", vaultReference)
	assert.ErrorIs(t, err, repository.ErrNotFound, "other vehicle's insurance")

	_, err = svc.GetForViewer(ctx, supplier, "lic-1", "ship-9", vaultReference)
	assert.ErrorIs(t, err, repository.ErrNotFound, "licenses are not shared with suppliers")

	_, err = svc.GetForViewer(ctx, admin, "missing", "", vaultReference)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
