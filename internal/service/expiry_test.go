package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fleet/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifyExpiry_Boundaries(t *testing.T) {
	t.Parallel()

	ref := date(2025, time.March, 10)
	tests := []struct {
		days  int
		level domain.ExpiryLevel
	}{
		{-30, domain.ExpiryExpired},
		{-1, domain.ExpiryExpired},
		{0, domain.ExpiryCritical},
		{1, domain.ExpiryCritical},
		{7, domain.ExpiryCritical},
		{8, domain.ExpiryWarning},
		{30, domain.ExpiryWarning},
		{31, domain.ExpiryValid},
		{365, domain.ExpiryValid},
	}

	for _, tt := range tests {
		c := ClassifyExpiry(ref.AddDate(0, 0, tt.days), ref)
		assert.Equal(t, tt.level, c.Level, "days=%d", tt.days)
		assert.Equal(t, tt.days, c.DaysLeft, "days=%d", tt.days)
	}
}

func TestClassifyExpiry_IgnoresTimeOfDay(t *testing.T) {
	t.Parallel()

	// Late evening reference and early morning expiry on the next day is still one day.
	ref := time.Date(2025, time.March, 10, 23, 59, 0, 0, time.UTC)
	expiry := time.Date(2025, time.March, 11, 0, 1, 0, 0, time.UTC)

	c := ClassifyExpiry(expiry, ref)
	assert.Equal(t, domain.ExpiryCritical, c.Level)
	assert.Equal(t, 1, c.DaysLeft)

	c = ClassifyExpiry(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), ref)
	assert.Equal(t, 0, c.DaysLeft, "same calendar day")
}

func TestClassifyExpiry_AcrossDST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	ref := time.Date(2025, time.March, 29, 12, 0, 0, 0, loc)
	expiry := time.Date(2025, time.March, 31, 12, 0, 0, 0, loc)

	assert.Equal(t, 2, DaysBetween(expiry, ref))
}

func TestDaysBetween_FarDates(t *testing.T) {
	t.Parallel()

	ref := date(2025, time.January, 1)
	far := date(2400, time.January, 1)

	assert.Equal(t, 136965, DaysBetween(far, ref))
	assert.Equal(t, -136965, DaysBetween(ref, far))

	c := ClassifyExpiry(far, ref)
	assert.Equal(t, domain.ExpiryValid, c.Level)
	assert.Equal(t, 136965, c.DaysLeft)
}

func TestClassifyExpiry_IsPure(t *testing.T) {
	t.Parallel()

	ref := date(2025, time.June, 1)
	expiry := date(2025, time.June, 5)
	first := ClassifyExpiry(expiry, ref)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClassifyExpiry(expiry, ref))
	}
}

func TestVisibleTo(t *testing.T) {
	t.Parallel()

	const assigned = "MH12AB1234"
	doc := func(cat domain.DocumentCategory, owner string) domain.Document {
		return domain.Document{ID: "d", Name: "doc", Category: cat, OwnerVehicle: owner}
	}

	tests := []struct {
		name    string
		role    domain.Role
		doc     domain.Document
		vehicle string
		want    bool
	}{
		{"admin sees fitness", domain.RoleAdmin, doc(domain.DocumentFitness, "X"), "", true},
		{"admin sees unowned", domain.RoleAdmin, doc(domain.DocumentRC, ""), "", true},
		{"driver sees own license", domain.RoleDriver, doc(domain.DocumentLicense, assigned), assigned, true},
		{"driver sees unowned permit", domain.RoleDriver, doc(domain.DocumentPermit, ""), assigned, true},
		{"driver never sees fitness", domain.RoleDriver, doc(domain.DocumentFitness, assigned), assigned, false},
		{"driver does not see other vehicle", domain.RoleDriver, doc(domain.DocumentRC, "KA01XY0001"), assigned, false},
		{"supplier sees shipment insurance", domain.RoleSupplier, doc(domain.DocumentInsurance, assigned), assigned, true},
		{"supplier never sees license", domain.RoleSupplier, doc(domain.DocumentLicense, assigned), assigned, false},
		{"supplier does not see unowned", domain.RoleSupplier, doc(domain.DocumentRC, ""), assigned, false},
		{"supplier without shipment sees nothing", domain.RoleSupplier, doc(domain.DocumentRC, ""), "", false},
		{"unknown role fails closed", domain.Role("auditor"), doc(domain.DocumentRC, ""), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VisibleTo(tt.role, tt.doc, tt.vehicle))
		})
	}
}

func TestClassifyDocuments_AnonymousSeesNothing(t *testing.T) {
	t.Parallel()

	docs := []*domain.Document{
		{ID: "1", Category: domain.DocumentRC, ExpiryDate: date(2025, time.January, 1)},
	}
	out := ClassifyDocuments(nil, docs, "", date(2025, time.January, 1))
	assert.Len(t, out, 1)
	assert.False(t, out[0].Visible)
}

// Insurance for MH14CD5678 expiring in 3 days, seen by admin and by the driver of another vehicle.
func TestClassifyDocuments_CriticalInsurance(t *testing.T) {
	t.Parallel()

	ref := date(2025, time.May, 1)
	docs := []*domain.Document{
		{ID: "ins", Name: "Insurance", Category: domain.DocumentInsurance, ExpiryDate: ref.AddDate(0, 0, 3), OwnerVehicle: "MH14CD5678"},
	}

	admin := &domain.Identity{ID: "a", Role: domain.RoleAdmin}
	out := ClassifyDocuments(admin, docs, "", ref)
	assert.True(t, out[0].Visible)
	assert.Equal(t, domain.Classification{Level: domain.ExpiryCritical, DaysLeft: 3}, out[0].Classification)

	driver := &domain.Identity{ID: "d", Role: domain.RoleDriver}
	out = ClassifyDocuments(driver, docs, "MH12AB1234", ref)
	assert.False(t, out[0].Visible)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	ref := date(2025, time.May, 1)
	var docs []*domain.Document
	for i, days := range []int{-5, -1, 0, 7, 8, 30, 31, 90} {
		docs = append(docs, &domain.Document{ID: string(rune('a' + i)), Category: domain.DocumentRC, ExpiryDate: ref.AddDate(0, 0, days)})
	}

	s := Summarize(ClassifyDocuments(&domain.Identity{Role: domain.RoleAdmin}, docs, "", ref))
	assert.Equal(t, ExpirySummary{Expired: 2, Critical: 2, Warning: 2, Valid: 2}, s)
}
