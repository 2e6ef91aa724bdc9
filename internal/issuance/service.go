package issuance

import (
	"context"
	"fmt"
	"time"

	"github.com/partline/partline/internal/observability"
	"github.com/partline/partline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindLineByCode(ctx context.Context, code string) (LineView, error)
	PeekOldestDemand(ctx context.Context, partID int64) (Demand, bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the allocation engine.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics *observability.Metrics
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// Stage previews what scanning a code would issue: the matched demand, if
// any, and the classification-based default quantity. Nothing is persisted;
// the commit path re-validates everything.
func (s *Service) Stage(ctx context.Context, code string, override int) (Staged, error) {
	line, err := s.repo.FindLineByCode(ctx, code)
	if err != nil {
		return Staged{}, err
	}
	if line.Available <= 0 {
		return Staged{}, ErrExhausted
	}
	staged := Staged{
		LineID:        line.ID,
		Code:          line.Code,
		PartID:        line.PartID,
		PartNumber:    line.PartNumber,
		PartName:      line.PartName,
		ReceiptNumber: line.ReceiptNumber,
		Available:     line.Available,
		ProposedQty:   DefaultQuantity(line.Classification, line.Available),
	}
	demand, found, err := s.repo.PeekOldestDemand(ctx, line.PartID)
	if err != nil {
		return Staged{}, err
	}
	if found {
		staged.RequestID = demand.RequestID
		staged.RequestLineID = demand.RequestLineID
		staged.Outstanding = demand.Requested - demand.IssuedSoFar
	} else {
		staged.Forced = true
	}
	if override > 0 {
		if override > line.Available {
			return Staged{}, fmt.Errorf("%w: %d > %d", ErrOverAvailable, override, line.Available)
		}
		staged.ProposedQty = override
	}
	return staged, nil
}

// CommitBatch applies a batch of staged entries in one transaction. Each
// entry re-validates availability and re-resolves FIFO demand against live
// rows under lock; any failure rolls the whole batch back. Matched entries
// reference the winning request line and flip its fulfilled flag once the
// cumulative issued quantity covers the requested quantity. Entries with no
// open demand are recorded as forced issuances with null request references.
func (s *Service) CommitBatch(ctx context.Context, entries []CommitEntry, issuedBy int64, issuedAt time.Time) ([]Issuance, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, entry := range entries {
		if entry.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	issued := make([]Issuance, 0, len(entries))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// a retried transaction starts the batch over
		issued = issued[:0]
		for _, entry := range entries {
			line, err := tx.LockLineByCode(ctx, entry.Code)
			if err != nil {
				return err
			}
			if line.Available <= 0 {
				return fmt.Errorf("%w: %s", ErrExhausted, entry.Code)
			}
			if entry.Quantity > line.Available {
				return fmt.Errorf("%w: %s wants %d, has %d", ErrOverAvailable, entry.Code, entry.Quantity, line.Available)
			}

			iss := Issuance{
				ReceiptLineID: line.ID,
				Quantity:      entry.Quantity,
				IssuedBy:      issuedBy,
				IssuedAt:      issuedAt,
			}
			demand, matched, err := tx.LockOldestDemand(ctx, line.PartID)
			if err != nil {
				return err
			}
			if matched {
				requestID, requestLineID := demand.RequestID, demand.RequestLineID
				iss.RequestID = &requestID
				iss.RequestLineID = &requestLineID
			} else {
				iss.Forced = true
			}

			id, err := tx.InsertIssuance(ctx, iss)
			if err != nil {
				return err
			}
			iss.ID = id
			if err := tx.DecrementLineAvailable(ctx, line.ID, entry.Quantity); err != nil {
				return err
			}
			if err := tx.DecrementPartStock(ctx, line.PartID, entry.Quantity); err != nil {
				return err
			}
			if matched {
				total, err := tx.RequestLineIssuedTotal(ctx, demand.RequestLineID)
				if err != nil {
					return err
				}
				if total >= demand.Requested {
					if err := tx.MarkFulfilled(ctx, demand.RequestLineID); err != nil {
						return err
					}
				}
			}
			issued = append(issued, iss)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, iss := range issued {
		if s.metrics != nil {
			s.metrics.CountIssuance(iss.Forced)
		}
	}
	if s.audit != nil {
		forced := 0
		for _, iss := range issued {
			if iss.Forced {
				forced++
			}
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  issuedBy,
			Action:   "issuance:commit",
			Entity:   "issuance_batch",
			EntityID: fmt.Sprintf("%d", issued[0].ID),
			Meta: map[string]any{
				"entries": len(issued),
				"forced":  forced,
			},
		})
	}
	return issued, nil
}
