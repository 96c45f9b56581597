package service

import (
	"time"

	"fleet/internal/domain"
)

// Expiry thresholds in whole days. A document with CriticalDays or fewer days
// left is Critical; with WarningDays or fewer it is Warning.
const (
	CriticalDays = 7
	WarningDays  = 30
)

// DaysBetween returns the number of calendar days from reference to expiry.
// Both values are reduced to their calendar date first, so the result is an
// exact integer; negative means expiry lies in the past.
func DaysBetween(expiry, reference time.Time) int {
	e := calendarDate(expiry)
	r := calendarDate(reference)
	// Not e.Sub(r): a Duration saturates after ~292 years.
	return int((e.Unix() - r.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClassifyExpiry tags a document expiry date relative to reference.
func ClassifyExpiry(expiry, reference time.Time) domain.Classification {
	days := DaysBetween(expiry, reference)
	switch {
	case days < 0:
		return domain.Classification{Level: domain.ExpiryExpired, DaysLeft: days}
	case days <= CriticalDays:
		return domain.Classification{Level: domain.ExpiryCritical, DaysLeft: days}
	case days <= WarningDays:
		return domain.Classification{Level: domain.ExpiryWarning, DaysLeft: days}
	default:
		return domain.Classification{Level: domain.ExpiryValid, DaysLeft: days}
	}
}

var (
	driverCategories = map[domain.DocumentCategory]bool{
		domain.DocumentRC:        true,
		domain.DocumentInsurance: true,
		domain.DocumentPermit:    true,
		domain.DocumentLicense:   true,
	}
	supplierCategories = map[domain.DocumentCategory]bool{
		domain.DocumentRC:        true,
		domain.DocumentInsurance: true,
		domain.DocumentPermit:    true,
	}
)

// VisibleTo reports whether a viewer with role may see doc. vehicleID is the
// driver's assigned vehicle or the supplier's shipment vehicle; it is ignored
// for admins. Unknown roles see nothing.
func VisibleTo(role domain.Role, doc domain.Document, vehicleID string) bool {
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleDriver:
		if !driverCategories[doc.Category] {
			return false
		}
		return doc.OwnerVehicle == "" || doc.OwnerVehicle == vehicleID
	case domain.RoleSupplier:
		if !supplierCategories[doc.Category] {
			return false
		}
		return vehicleID != "" && doc.OwnerVehicle == vehicleID
	default:
		return false
	}
}

// ClassifyDocuments projects docs for a viewer at reference. A nil viewer gets
// every document with Visible false.
func ClassifyDocuments(viewer *domain.Identity, docs []*domain.Document, vehicleID string, reference time.Time) []domain.ClassifiedDocument {
	out := make([]domain.ClassifiedDocument, 0, len(docs))
	for _, doc := range docs {
		visible := false
		if viewer != nil {
			visible = VisibleTo(viewer.Role, *doc, vehicleID)
		}
		out = append(out, domain.ClassifiedDocument{
			Document:       *doc,
			Classification: ClassifyExpiry(doc.ExpiryDate, reference),
			Visible:        visible,
		})
	}
	return out
}

// ExpirySummary counts documents per urgency level.
type ExpirySummary struct {
	Expired  int
	Critical int
	Warning  int
	Valid    int
}

// Summarize counts the given classified documents by level.
func Summarize(docs []domain.ClassifiedDocument) ExpirySummary {
	var s ExpirySummary
	for _, d := range docs {
		switch d.Classification.Level {
		case domain.ExpiryExpired:
			s.Expired++
		case domain.ExpiryCritical:
			s.Critical++
		case domain.ExpiryWarning:
			s.Warning++
		case domain.ExpiryValid:
			s.Valid++
		}
	}
	return s
}
