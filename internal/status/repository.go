package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the read-only aggregation queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OpenLines returns the oldest unfulfilled request lines, FIFO by request
// timestamp then line id.
func (r *Repository) OpenLines(ctx context.Context, limit int) ([]BoardLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT rq.id, rl.id, rq.destination, rl.part_id, p.part_number, COALESCE(p.part_name,''), rl.quantity,
       COALESCE((SELECT SUM(i.quantity) FROM issuances i WHERE i.request_line_id = rl.id AND i.deleted_at IS NULL), 0),
       rq.requested_at
FROM request_lines rl
JOIN requests rq ON rq.id = rl.request_id
JOIN parts p ON p.id = rl.part_id
WHERE rl.fulfilled = FALSE AND rq.deleted_at IS NULL
ORDER BY rq.requested_at ASC, rl.id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("status: open lines: %w", err)
	}
	defer rows.Close()
	lines := []BoardLine{}
	for rows.Next() {
		var line BoardLine
		if err := rows.Scan(&line.RequestID, &line.LineID, &line.Destination, &line.PartID, &line.PartNumber, &line.PartName, &line.Quantity, &line.IssuedQty, &line.RequestedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// PartTotals returns the issued rollup for one part across all of its
// receipt lines.
func (r *Repository) PartTotals(ctx context.Context, partID int64) (PartTotals, error) {
	var totals PartTotals
	err := r.pool.QueryRow(ctx, `SELECT p.id, p.part_number, COALESCE(p.part_name,''), p.stock,
       COALESCE((SELECT SUM(i.quantity)
                 FROM issuances i
                 JOIN receipt_lines rl ON rl.id = i.receipt_line_id
                 WHERE rl.part_id = p.id AND i.deleted_at IS NULL), 0)
FROM parts p WHERE p.id = $1`, partID).
		Scan(&totals.PartID, &totals.PartNumber, &totals.PartName, &totals.Stock, &totals.IssuedTotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return PartTotals{}, ErrPartNotFound
	}
	if err != nil {
		return PartTotals{}, fmt.Errorf("status: part totals: %w", err)
	}
	return totals, nil
}
