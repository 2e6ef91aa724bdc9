package status

import (
	"context"
	"time"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	OpenLines(ctx context.Context, limit int) ([]BoardLine, error)
	PartTotals(ctx context.Context, partID int64) (PartTotals, error)
}

// Service serves the read-only aggregations.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Board returns the open-line board: the oldest unfulfilled request lines
// with their age flags.
func (s *Service) Board(ctx context.Context) ([]BoardLine, error) {
	lines, err := s.repo.OpenLines(ctx, BoardSize)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range lines {
		lines[i].Flag = FlagFor(lines[i].RequestedAt, now)
	}
	return lines, nil
}

// PartTotals returns the issued rollup for one part.
func (s *Service) PartTotals(ctx context.Context, partID int64) (PartTotals, error) {
	return s.repo.PartTotals(ctx, partID)
}
