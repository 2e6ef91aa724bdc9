package receiving

import (
	"errors"
	"fmt"
	"time"
)

// Receipt is one intake event grouping received lines under a batch number.
type Receipt struct {
	ID            int64
	ReceiptNumber string
	ReceivedBy    int64
	ReceivedAt    time.Time
	CreatedAt     time.Time
	Lines         []ReceiptLine
	TotalQuantity int
	UniqueParts   int
}

// ReceiptLine is one part-quantity unit within a receipt. Quantity is fixed
// at creation; Available starts equal to it and only ever decreases through
// issuance. Code is the unique scannable label identifier.
type ReceiptLine struct {
	ID         int64
	ReceiptID  int64
	PartID     int64
	PartNumber string
	PartName   string
	Quantity   int
	Available  int
	Code       string
}

// LineInput is one requested line of a new receipt.
type LineInput struct {
	PartID   int64
	Quantity int
}

// CreateReceiptInput describes a new intake event.
type CreateReceiptInput struct {
	ReceivedBy int64
	ReceivedAt time.Time
	Lines      []LineInput
}

// ListFilter narrows receipt listings.
type ListFilter struct {
	Page    int
	PerPage int
}

var (
	// ErrEmptyReceipt indicates a receipt submitted without lines.
	ErrEmptyReceipt = errors.New("receiving: at least one line required")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("receiving: quantity must be positive")
	// ErrUnknownPart indicates a line referencing a missing part.
	ErrUnknownPart = errors.New("receiving: part not found")
	// ErrReceiptNotFound indicates an unknown receipt id.
	ErrReceiptNotFound = errors.New("receiving: receipt not found")
	// ErrDuplicateCode indicates a generated code collided with an existing one.
	ErrDuplicateCode = errors.New("receiving: line code already exists")
)

// BatchCode builds the human-readable receipt number. The sequence derives
// from the receipt id, so no counter table is needed.
func BatchCode(receivedAt time.Time, receiptID int64) string {
	return fmt.Sprintf("BATCH-%s-%04d", receivedAt.Format("20060102"), receiptID)
}

// LineCode builds the unique scannable code for the idx-th line of a receipt.
// Offsetting by receiptID*100 keeps codes unique per receipt without a
// counter table; the unique index on receipt_lines.code backs the guarantee
// system-wide.
func LineCode(receivedAt time.Time, receiptID int64, idx int) string {
	return fmt.Sprintf("RCPT-%s-%04d", receivedAt.Format("20060102"), receiptID*100+int64(idx)+1)
}
