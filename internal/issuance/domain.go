package issuance

import (
	"errors"
	"time"
)

// LineView is a receipt line as seen by the allocation engine, joined with
// its part's master fields.
type LineView struct {
	ID             int64
	Code           string
	ReceiptNumber  string
	PartID         int64
	PartNumber     string
	PartName       string
	Classification string
	Available      int
}

// Demand is the oldest open request line for a part, the FIFO winner.
type Demand struct {
	RequestID     int64
	RequestLineID int64
	Destination   string
	Requested     int
	IssuedSoFar   int
}

// Staged is the proposal returned by Stage: what scanning a code would
// issue, before the caller commits. Nothing is persisted at this point.
type Staged struct {
	LineID        int64
	Code          string
	PartID        int64
	PartNumber    string
	PartName      string
	ReceiptNumber string
	Available     int
	ProposedQty   int
	Forced        bool
	RequestID     int64
	RequestLineID int64
	Outstanding   int
}

// CommitEntry is one line of an issuance batch.
type CommitEntry struct {
	Code     string
	Quantity int
}

// Issuance is one immutable allocation of stock from a receipt line,
// matched to a request line or forced when no open demand existed.
type Issuance struct {
	ID            int64
	ReceiptLineID int64
	RequestID     *int64
	RequestLineID *int64
	Forced        bool
	Quantity      int
	IssuedBy      int64
	IssuedAt      time.Time
}

var (
	// ErrLineNotFound indicates an unknown scannable code.
	ErrLineNotFound = errors.New("issuance: no line with that code")
	// ErrExhausted indicates a line with no quantity left.
	ErrExhausted = errors.New("issuance: line available is exhausted")
	// ErrOverAvailable indicates a quantity above the line's available ceiling.
	ErrOverAvailable = errors.New("issuance: quantity exceeds available")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("issuance: quantity must be positive")
	// ErrEmptyBatch indicates a commit without entries.
	ErrEmptyBatch = errors.New("issuance: at least one entry required")
)

// DefaultQuantity proposes how much to issue from a line based on the
// part's classification. Small parts move as a whole box, medium and big
// in fixed carrier sizes, everything else one at a time.
func DefaultQuantity(classification string, available int) int {
	switch classification {
	case "small":
		return available
	case "medium":
		return minInt(100, available)
	case "big":
		return minInt(72, available)
	default:
		return 1
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
