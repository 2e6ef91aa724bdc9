package receiving

import (
	"context"
	"fmt"
	"time"

	"github.com/partline/partline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Receipt, error)
	List(ctx context.Context, filter ListFilter) ([]Receipt, shared.Pagination, error)
	LineIDsForReceipt(ctx context.Context, receiptID int64) ([]int64, error)
	SoftDelete(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LabelScheduler enqueues background label generation for receipt lines.
type LabelScheduler interface {
	ScheduleLines(ctx context.Context, lineIDs []int64, actorID int64) (string, error)
}

// Service coordinates receipt intake.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	labels LabelScheduler
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, labels LabelScheduler) *Service {
	return &Service{repo: repo, audit: audit, labels: labels}
}

// Create records a batch of incoming parts in one all-or-nothing transaction:
// receipt row, generated codes, one line per input, and a stock increment per
// line. Any failure rolls the whole intake back.
func (s *Service) Create(ctx context.Context, input CreateReceiptInput) (Receipt, error) {
	if len(input.Lines) == 0 {
		return Receipt{}, ErrEmptyReceipt
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Receipt{}, ErrInvalidQuantity
		}
		if line.PartID == 0 {
			return Receipt{}, ErrUnknownPart
		}
	}
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	var receiptID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertReceipt(ctx, input.ReceivedBy, receivedAt)
		if err != nil {
			return err
		}
		receiptID = id
		if err := tx.SetReceiptNumber(ctx, id, BatchCode(receivedAt, id)); err != nil {
			return err
		}
		for idx, line := range input.Lines {
			rl := ReceiptLine{
				ReceiptID: id,
				PartID:    line.PartID,
				Quantity:  line.Quantity,
				Available: line.Quantity,
				Code:      LineCode(receivedAt, id, idx),
			}
			if _, err := tx.InsertLine(ctx, rl); err != nil {
				return err
			}
			if err := tx.IncrementPartStock(ctx, line.PartID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	receipt, err := s.repo.Get(ctx, receiptID)
	if err != nil {
		return Receipt{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ReceivedBy,
			Action:   "receiving:create",
			Entity:   "receipt",
			EntityID: receipt.ReceiptNumber,
			Meta: map[string]any{
				"lines":     len(receipt.Lines),
				"total_qty": receipt.TotalQuantity,
			},
		})
	}
	return receipt, nil
}

// Get loads one receipt with lines.
func (s *Service) Get(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of receipts with totals.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Receipt, shared.Pagination, error) {
	return s.repo.List(ctx, filter)
}

// Delete soft-deletes a receipt and its lines.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "receiving:delete",
			Entity:   "receipt",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

// ScheduleLabels queues label PDF generation for every line of a receipt and
// returns the print-job token. Completion is reported to the actor through
// the notification channel, not this call.
func (s *Service) ScheduleLabels(ctx context.Context, receiptID int64, actorID int64) (string, error) {
	if s.labels == nil {
		return "", fmt.Errorf("receiving: label scheduler not configured")
	}
	ids, err := s.repo.LineIDsForReceipt(ctx, receiptID)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrReceiptNotFound
	}
	return s.labels.ScheduleLines(ctx, ids, actorID)
}
