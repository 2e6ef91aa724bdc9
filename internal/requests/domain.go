package requests

import (
	"errors"
	"time"
)

// Destinations parts can be requested for. The set is fixed; new lines or
// warehouses are a schema change, not user input.
var Destinations = []string{"Line KS", "Line SU", "Gudang"}

// ValidDestination reports whether dest is one of the known destinations.
func ValidDestination(dest string) bool {
	for _, d := range Destinations {
		if d == dest {
			return true
		}
	}
	return false
}

// Status is the derived issuance status of a request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPartially Status = "partially issued"
	StatusFully     Status = "fully issued"
)

// DeriveStatus computes the rollup status from the two sums. The pending
// check runs first so a zero-line request with no issuances reads pending.
func DeriveStatus(requested, issued int) Status {
	switch {
	case issued <= 0:
		return StatusPending
	case issued >= requested:
		return StatusFully
	default:
		return StatusPartially
	}
}

// ParseStatusFilter maps a query value onto the closed filter set.
// Empty means no filter.
func ParseStatusFilter(raw string) (Status, error) {
	switch Status(raw) {
	case "", StatusPending, StatusPartially, StatusFully:
		return Status(raw), nil
	default:
		return "", ErrUnknownStatusFilter
	}
}

// Request is one submitted demand for parts.
type Request struct {
	ID          int64
	Destination string
	RequestedBy int64
	RequestedAt time.Time
	CreatedAt   time.Time
	Lines       []RequestLine

	// Rollups, computed on read.
	RequestedTotal int
	IssuedTotal    int
	Status         Status
}

// RequestLine is one part demanded within a request. Quantity is immutable
// after submission; only Fulfilled and linked issuances change.
type RequestLine struct {
	ID         int64
	RequestID  int64
	PartID     int64
	PartNumber string
	PartName   string
	Quantity   int
	Fulfilled  bool
	IssuedQty  int
}

// SubmitInput describes a request submission.
type SubmitInput struct {
	Destination string
	RequestedBy int64
	RequestedAt time.Time
	Basket      Basket
}

// ListFilter narrows request listings.
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}

var (
	// ErrEmptyBasket indicates submission without staged items.
	ErrEmptyBasket = errors.New("requests: basket is empty")
	// ErrUnknownPart indicates a staged part number not in the catalog.
	ErrUnknownPart = errors.New("requests: part not found")
	// ErrInvalidDestination indicates a destination outside the fixed set.
	ErrInvalidDestination = errors.New("requests: unknown destination")
	// ErrRequestNotFound indicates an unknown request id.
	ErrRequestNotFound = errors.New("requests: request not found")
	// ErrUnknownStatusFilter indicates a status filter outside the closed set.
	ErrUnknownStatusFilter = errors.New("requests: unknown status filter")
)
