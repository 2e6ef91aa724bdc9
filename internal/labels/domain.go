package labels

import (
	"errors"
	"time"
)

// Status captures the state of a print job record.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
)

// PrintJob represents a persisted label generation request/result.
type PrintJob struct {
	ID           int64
	Token        string
	RequestedBy  int64
	LineIDs      []int64
	Status       Status
	FilePath     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Label is the view model for one printed label.
type Label struct {
	Code          string
	PartNumber    string
	PartName      string
	Quantity      int
	Receiver      string
	Batch         string
	ReceivedAt    time.Time
	QRBase64      string
	BarcodeBase64 string
}

// LabelsPerPage is the A4 grid capacity, 3 columns by 5 rows.
const LabelsPerPage = 15

// SheetData is the view model passed to the A4 template.
type SheetData struct {
	Pages [][]Label
}

// Paginate chunks labels into full sheets.
func Paginate(labels []Label) SheetData {
	var pages [][]Label
	for start := 0; start < len(labels); start += LabelsPerPage {
		end := start + LabelsPerPage
		if end > len(labels) {
			end = len(labels)
		}
		pages = append(pages, labels[start:end])
	}
	return SheetData{Pages: pages}
}

var (
	// ErrJobNotFound indicates an unknown print job token.
	ErrJobNotFound = errors.New("labels: print job not found")
	// ErrNoLines indicates a job scheduled without line ids.
	ErrNoLines = errors.New("labels: no receipt lines selected")
	// ErrNotReady indicates a download attempt before the PDF exists.
	ErrNotReady = errors.New("labels: print job not ready")
	// ErrInvalidStatus indicates a status transition the job state machine forbids.
	ErrInvalidStatus = errors.New("labels: invalid status transition")
)
