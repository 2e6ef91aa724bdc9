package status

import (
	"errors"
	"time"
)

// BoardSize caps how many open lines the board shows, oldest first.
const BoardSize = 50

// DelayThreshold marks how long an open line may wait before it is flagged.
const DelayThreshold = 30 * time.Minute

// AgeFlag classifies how long an open line has been waiting.
type AgeFlag string

const (
	AgeNew     AgeFlag = "new"
	AgeDelayed AgeFlag = "delayed"
)

// FlagFor derives the age flag from the request timestamp.
func FlagFor(requestedAt, now time.Time) AgeFlag {
	if now.Sub(requestedAt) > DelayThreshold {
		return AgeDelayed
	}
	return AgeNew
}

// BoardLine is one unfulfilled request line on the open-line board.
type BoardLine struct {
	RequestID   int64
	LineID      int64
	Destination string
	PartID      int64
	PartNumber  string
	PartName    string
	Quantity    int
	IssuedQty   int
	RequestedAt time.Time
	Flag        AgeFlag
}

// PartTotals is the per-part issued rollup.
type PartTotals struct {
	PartID      int64
	PartNumber  string
	PartName    string
	Stock       int
	IssuedTotal int
}

// ErrPartNotFound indicates an unknown part id.
var ErrPartNotFound = errors.New("status: part not found")
