package catalog

import (
	"errors"
	"time"
)

// Classification groups parts by physical size and handling rules.
// Issuance uses it to propose default quantities.
type Classification string

const (
	// ClassificationDraft marks parts not yet classified by the planner.
	ClassificationDraft Classification = "draft"
	// ClassificationSmall is for parts issued a full receipt line at a time.
	ClassificationSmall Classification = "small"
	// ClassificationMedium is for parts handled in lots of 100.
	ClassificationMedium Classification = "medium"
	// ClassificationBig is for parts handled in lots of 72.
	ClassificationBig Classification = "big"
)

// Valid reports whether the classification is one of the known values.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationDraft, ClassificationSmall, ClassificationMedium, ClassificationBig:
		return true
	}
	return false
}

// Part is the master record for a distinct physical component.
// Stock is a denormalised counter of net received minus issued quantity;
// it is mutated only inside receiving and issuance transactions.
type Part struct {
	ID             int64
	PartNumber     string
	PartName       string
	Model          string
	Variant        string
	Classification Classification
	Stock          int
	Homeline       string
	Address        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PartInput describes a part create or update payload.
type PartInput struct {
	PartNumber     string
	PartName       string
	Model          string
	Variant        string
	Classification Classification
	Homeline       string
	Address        string
}

// ListFilter narrows part listings.
type ListFilter struct {
	Page    int
	PerPage int
}

// ErrPartNotFound indicates an unknown part id or part number.
var ErrPartNotFound = errors.New("catalog: part not found")

// ErrDuplicatePartNumber indicates the part number is already registered.
var ErrDuplicatePartNumber = errors.New("catalog: part number already exists")

// ErrInvalidClassification indicates an unknown classification value.
var ErrInvalidClassification = errors.New("catalog: invalid classification")
