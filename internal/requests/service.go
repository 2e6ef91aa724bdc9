package requests

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/partline/partline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ResolvePart(ctx context.Context, partNumber string) (int64, error)
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, shared.Pagination, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier delivers the submission confirmation to the requesting user.
type Notifier interface {
	RequestSubmitted(ctx context.Context, userID, requestID int64, itemCount int, url string) error
}

// Service coordinates request staging and submission.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	audit    AuditPort
	notifier Notifier
	baseURL  string
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, notifier Notifier, baseURL string) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, notifier: notifier, baseURL: strings.TrimRight(baseURL, "/")}
}

// Stage adds one scan of the given part number to the basket and returns the
// updated basket. Unknown part numbers leave the basket untouched.
func (s *Service) Stage(ctx context.Context, basket Basket, partNumber string) (Basket, error) {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return basket, ErrUnknownPart
	}
	if _, err := s.repo.ResolvePart(ctx, partNumber); err != nil {
		return basket, err
	}
	if basket == nil {
		basket = Basket{}
	}
	basket.Add(partNumber)
	return basket, nil
}

// Submit persists the basket as a request with one line per distinct part,
// all in one transaction. The caller discards its basket on success.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (Request, error) {
	if input.Basket.Empty() {
		return Request{}, ErrEmptyBasket
	}
	if !ValidDestination(input.Destination) {
		return Request{}, ErrInvalidDestination
	}
	requestedAt := input.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}

	// Resolve every part number before opening the transaction so a stale
	// basket fails fast without burning a request id.
	partIDs := map[string]int64{}
	for _, pn := range input.Basket.PartNumbers() {
		id, err := s.repo.ResolvePart(ctx, pn)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %s", ErrUnknownPart, pn)
		}
		partIDs[pn] = id
	}

	var requestID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertRequest(ctx, input.Destination, input.RequestedBy, requestedAt)
		if err != nil {
			return err
		}
		requestID = id
		for _, pn := range input.Basket.PartNumbers() {
			if _, err := tx.InsertLine(ctx, id, partIDs[pn], input.Basket[pn]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	request, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.RequestedBy,
			Action:   "requests:submit",
			Entity:   "request",
			EntityID: fmt.Sprintf("%d", request.ID),
			Meta: map[string]any{
				"destination": request.Destination,
				"items":       request.RequestedTotal,
			},
		})
	}
	if s.notifier != nil {
		url := fmt.Sprintf("%s/requests/%d", s.baseURL, request.ID)
		if err := s.notifier.RequestSubmitted(ctx, input.RequestedBy, request.ID, request.RequestedTotal, url); err != nil {
			s.logger.Warn("request submit notification failed",
				slog.Int64("request_id", request.ID), slog.Any("error", err))
		}
	}
	return request, nil
}

// Get loads one request with lines and rollups.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of requests with rollups.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, shared.Pagination, error) {
	return s.repo.List(ctx, filter)
}
