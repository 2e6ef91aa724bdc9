package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partline/partline/internal/platform/db"
	"github.com/partline/partline/internal/shared"
)

// Repository persists requests in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertRequest(ctx context.Context, destination string, requestedBy int64, requestedAt time.Time) (int64, error)
	InsertLine(ctx context.Context, requestID, partID int64, quantity int) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction with
// serialization retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (t *txRepository) InsertRequest(ctx context.Context, destination string, requestedBy int64, requestedAt time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO requests (destination, requested_by, requested_at)
VALUES ($1, $2, $3) RETURNING id`, destination, requestedBy, requestedAt).Scan(&id)
	return id, err
}

func (t *txRepository) InsertLine(ctx context.Context, requestID, partID int64, quantity int) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO request_lines (request_id, part_id, quantity, fulfilled)
VALUES ($1, $2, $3, FALSE) RETURNING id`, requestID, partID, quantity).Scan(&id)
	return id, err
}

// ResolvePart maps a part number onto its id and display fields.
func (r *Repository) ResolvePart(ctx context.Context, partNumber string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM parts WHERE part_number=$1`, partNumber).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUnknownPart
	}
	return id, err
}

// Get loads a request with lines and rollup sums.
func (r *Repository) Get(ctx context.Context, id int64) (Request, error) {
	var req Request
	err := r.pool.QueryRow(ctx, `SELECT id, destination, COALESCE(requested_by, 0), requested_at, created_at
FROM requests WHERE id=$1 AND `+shared.NotDeleted("")+``, id).
		Scan(&req.ID, &req.Destination, &req.RequestedBy, &req.RequestedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, fmt.Errorf("requests: get request: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT rl.id, rl.request_id, rl.part_id, p.part_number, COALESCE(p.part_name,''), rl.quantity, rl.fulfilled,
       COALESCE((SELECT SUM(i.quantity) FROM issuances i WHERE i.request_line_id = rl.id AND `+shared.NotDeleted("i")+`), 0)
FROM request_lines rl
JOIN parts p ON p.id = rl.part_id
WHERE rl.request_id=$1
ORDER BY rl.id ASC`, id)
	if err != nil {
		return Request{}, fmt.Errorf("requests: load lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line RequestLine
		if err := rows.Scan(&line.ID, &line.RequestID, &line.PartID, &line.PartNumber, &line.PartName, &line.Quantity, &line.Fulfilled, &line.IssuedQty); err != nil {
			return Request{}, err
		}
		req.Lines = append(req.Lines, line)
		req.RequestedTotal += line.Quantity
		req.IssuedTotal += line.IssuedQty
	}
	if err := rows.Err(); err != nil {
		return Request{}, err
	}
	req.Status = DeriveStatus(req.RequestedTotal, req.IssuedTotal)
	return req, nil
}

// filterPredicates is the closed set of status filters, expressed over the
// same derived sums the rollup uses. No caller-supplied fragments.
var filterPredicates = map[Status]string{
	StatusPending:   `COALESCE(t.issued_total, 0) <= 0`,
	StatusPartially: `COALESCE(t.issued_total, 0) > 0 AND t.issued_total < t.requested_total`,
	StatusFully:     `COALESCE(t.issued_total, 0) > 0 AND t.issued_total >= t.requested_total`,
}

const rollupCTE = `WITH t AS (
  SELECT r.id, r.destination, COALESCE(r.requested_by, 0) AS requested_by, r.requested_at, r.created_at,
         COALESCE(SUM(rl.quantity), 0) AS requested_total,
         COALESCE((SELECT SUM(i.quantity)
                   FROM issuances i
                   JOIN request_lines rl2 ON rl2.id = i.request_line_id
                   WHERE rl2.request_id = r.id AND i.deleted_at IS NULL), 0) AS issued_total
  FROM requests r
  LEFT JOIN request_lines rl ON rl.request_id = r.id
  WHERE r.deleted_at IS NULL
  GROUP BY r.id
)`

// List returns requests newest first with rollup sums, optionally narrowed
// by one of the named status predicates.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, shared.Pagination, error) {
	where := ""
	if filter.Status != "" {
		predicate, ok := filterPredicates[filter.Status]
		if !ok {
			return nil, shared.Pagination{}, ErrUnknownStatusFilter
		}
		where = ` WHERE ` + predicate
	}

	var total int
	if err := r.pool.QueryRow(ctx, rollupCTE+` SELECT COUNT(*) FROM t`+where).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("requests: count: %w", err)
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)

	rows, err := r.pool.Query(ctx, rollupCTE+`
SELECT t.id, t.destination, t.requested_by, t.requested_at, t.created_at, t.requested_total, t.issued_total
FROM t`+where+`
ORDER BY t.requested_at DESC, t.id DESC
LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("requests: list: %w", err)
	}
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.Destination, &req.RequestedBy, &req.RequestedAt, &req.CreatedAt, &req.RequestedTotal, &req.IssuedTotal); err != nil {
			return nil, shared.Pagination{}, err
		}
		req.Status = DeriveStatus(req.RequestedTotal, req.IssuedTotal)
		out = append(out, req)
	}
	return out, page, rows.Err()
}
