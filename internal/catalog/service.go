package catalog

import (
	"context"
	"strings"

	"github.com/partline/partline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, input PartInput) (Part, error)
	Update(ctx context.Context, id int64, input PartInput) (Part, error)
	GetByID(ctx context.Context, id int64) (Part, error)
	GetByPartNumber(ctx context.Context, partNumber string) (Part, error)
	List(ctx context.Context, filter ListFilter) ([]Part, shared.Pagination, error)
	Search(ctx context.Context, query string, limit int) ([]Part, error)
}

// Service coordinates part master operations.
type Service struct {
	repo  RepositoryPort
	cache *SearchCache
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *SearchCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Create registers a new part. New parts start at zero stock; stock only
// moves through receiving and issuance transactions.
func (s *Service) Create(ctx context.Context, input PartInput) (Part, error) {
	input.PartNumber = strings.TrimSpace(input.PartNumber)
	if input.PartNumber == "" {
		return Part{}, ErrPartNotFound
	}
	if input.Classification == "" {
		input.Classification = ClassificationDraft
	}
	if !input.Classification.Valid() {
		return Part{}, ErrInvalidClassification
	}
	part, err := s.repo.Create(ctx, input)
	if err != nil {
		return Part{}, err
	}
	_ = s.cache.Bump(ctx)
	return part, nil
}

// Update rewrites master fields for an existing part.
func (s *Service) Update(ctx context.Context, id int64, input PartInput) (Part, error) {
	input.PartNumber = strings.TrimSpace(input.PartNumber)
	if !input.Classification.Valid() {
		return Part{}, ErrInvalidClassification
	}
	part, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return Part{}, err
	}
	_ = s.cache.Bump(ctx)
	return part, nil
}

// Get loads a part by id.
func (s *Service) Get(ctx context.Context, id int64) (Part, error) {
	return s.repo.GetByID(ctx, id)
}

// Lookup resolves a part by its unique part number, e.g. from a scan.
func (s *Service) Lookup(ctx context.Context, partNumber string) (Part, error) {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return Part{}, ErrPartNotFound
	}
	return s.repo.GetByPartNumber(ctx, partNumber)
}

// List returns a page of parts.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Part, shared.Pagination, error) {
	return s.repo.List(ctx, filter)
}

// Search matches part numbers by substring, served from cache when warm.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Part, error) {
	query = strings.TrimSpace(query)
	return s.cache.Fetch(ctx, query, limit, func(ctx context.Context) ([]Part, error) {
		return s.repo.Search(ctx, query, limit)
	})
}
