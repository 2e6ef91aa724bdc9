package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	lines  []BoardLine
	totals map[int64]PartTotals
	limit  int
}

func (r *memoryRepo) OpenLines(_ context.Context, limit int) ([]BoardLine, error) {
	r.limit = limit
	if len(r.lines) > limit {
		return r.lines[:limit], nil
	}
	return r.lines, nil
}

func (r *memoryRepo) PartTotals(_ context.Context, partID int64) (PartTotals, error) {
	totals, ok := r.totals[partID]
	if !ok {
		return PartTotals{}, ErrPartNotFound
	}
	return totals, nil
}

func TestBoardFlagsDelayedLines(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	repo := &memoryRepo{lines: []BoardLine{
		{LineID: 1, RequestedAt: now.Add(-45 * time.Minute)},
		{LineID: 2, RequestedAt: now.Add(-30 * time.Minute)},
		{LineID: 3, RequestedAt: now.Add(-5 * time.Minute)},
	}}
	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	lines, err := svc.Board(context.Background())
	require.NoError(t, err)
	require.Equal(t, AgeDelayed, lines[0].Flag)
	require.Equal(t, AgeNew, lines[1].Flag)
	require.Equal(t, AgeNew, lines[2].Flag)
	require.Equal(t, BoardSize, repo.limit)
}

func TestPartTotals(t *testing.T) {
	repo := &memoryRepo{totals: map[int64]PartTotals{
		7: {PartID: 7, PartNumber: "PN-7", Stock: 30, IssuedTotal: 12},
	}}
	svc := NewService(repo)

	totals, err := svc.PartTotals(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 12, totals.IssuedTotal)

	_, err = svc.PartTotals(context.Background(), 8)
	require.ErrorIs(t, err, ErrPartNotFound)
}
