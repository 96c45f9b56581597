package domain

import "time"

// DocumentCategory is the kind of compliance document.
type DocumentCategory string

const (
	DocumentRC        DocumentCategory = "RC"
	DocumentInsurance DocumentCategory = "Insurance"
	DocumentPermit    DocumentCategory = "Permit"
	DocumentLicense   DocumentCategory = "License"
	DocumentFitness   DocumentCategory = "Fitness"
)

// Valid reports whether c is a known category.
func (c DocumentCategory) Valid() bool {
	switch c {
	case DocumentRC, DocumentInsurance, DocumentPermit, DocumentLicense, DocumentFitness:
		return true
	}
	return false
}

// Document is a vehicle or driver document held in the vault.
// It is immutable once loaded; its expiry classification is always derived.
type Document struct {
	ID           string
	Name         string
	Category     DocumentCategory
	ExpiryDate   time.Time // Calendar date; time of day is ignored.
	OwnerVehicle string    // Empty when the document is not tied to a vehicle.
	CreatedAt    time.Time
}

// ExpiryLevel is the urgency tag of a document.
type ExpiryLevel string

const (
	ExpiryExpired  ExpiryLevel = "EXPIRED"
	ExpiryCritical ExpiryLevel = "CRITICAL"
	ExpiryWarning  ExpiryLevel = "WARNING"
	ExpiryValid    ExpiryLevel = "VALID"
)

// Classification is the result of classifying a document expiry against a reference date.
// DaysLeft is meaningful for every level but only reported for Critical and Warning.
type Classification struct {
	Level    ExpiryLevel
	DaysLeft int
}

// ClassifiedDocument is the read-only projection handed to the presentation layer.
type ClassifiedDocument struct {
	Document       Document
	Classification Classification
	Visible        bool
}
