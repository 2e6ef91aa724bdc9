package issuance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partline/partline/internal/platform/db"
	"github.com/partline/partline/internal/shared"
)

// Repository persists issuances in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the locked operations the commit path runs inside
// one transaction.
type TxRepository interface {
	LockLineByCode(ctx context.Context, code string) (LineView, error)
	LockOldestDemand(ctx context.Context, partID int64) (Demand, bool, error)
	InsertIssuance(ctx context.Context, iss Issuance) (int64, error)
	DecrementLineAvailable(ctx context.Context, lineID int64, qty int) error
	DecrementPartStock(ctx context.Context, partID int64, qty int) error
	RequestLineIssuedTotal(ctx context.Context, requestLineID int64) (int, error)
	MarkFulfilled(ctx context.Context, requestLineID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
// A commit that loses a serialization race is retried by db.WithTx with a
// fresh transaction, which re-reads live availability and demand.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const lineViewColumns = `rl.id, rl.code, r.receipt_number, rl.part_id, p.part_number, COALESCE(p.part_name,''), p.classification, rl.available`

func scanLineView(row pgx.Row) (LineView, error) {
	var view LineView
	err := row.Scan(&view.ID, &view.Code, &view.ReceiptNumber, &view.PartID, &view.PartNumber, &view.PartName, &view.Classification, &view.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return LineView{}, ErrLineNotFound
	}
	return view, err
}

// FindLineByCode resolves a scanned code outside any transaction, for the
// stage preview.
func (r *Repository) FindLineByCode(ctx context.Context, code string) (LineView, error) {
	return scanLineView(r.pool.QueryRow(ctx, `SELECT `+lineViewColumns+`
FROM receipt_lines rl
JOIN receipts r ON r.id = rl.receipt_id
JOIN parts p ON p.id = rl.part_id
WHERE rl.code=$1 AND `+shared.NotDeleted("rl"), code))
}

// PeekOldestDemand resolves FIFO demand without locking, for the stage
// preview. The commit path re-resolves under lock.
func (r *Repository) PeekOldestDemand(ctx context.Context, partID int64) (Demand, bool, error) {
	return scanDemand(r.pool.QueryRow(ctx, demandQuery, partID))
}

const demandQuery = `SELECT rl.request_id, rl.id, rq.destination, rl.quantity,
       COALESCE((SELECT SUM(i.quantity) FROM issuances i WHERE i.request_line_id = rl.id AND i.deleted_at IS NULL), 0)
FROM request_lines rl
JOIN requests rq ON rq.id = rl.request_id
WHERE rl.part_id = $1 AND rl.fulfilled = FALSE AND rq.deleted_at IS NULL
ORDER BY rq.requested_at ASC, rl.id ASC
LIMIT 1`

func scanDemand(row pgx.Row) (Demand, bool, error) {
	var demand Demand
	err := row.Scan(&demand.RequestID, &demand.RequestLineID, &demand.Destination, &demand.Requested, &demand.IssuedSoFar)
	if errors.Is(err, pgx.ErrNoRows) {
		return Demand{}, false, nil
	}
	if err != nil {
		return Demand{}, false, fmt.Errorf("issuance: resolve demand: %w", err)
	}
	return demand, true, nil
}

func (t *txRepository) LockLineByCode(ctx context.Context, code string) (LineView, error) {
	return scanLineView(t.tx.QueryRow(ctx, `SELECT `+lineViewColumns+`
FROM receipt_lines rl
JOIN receipts r ON r.id = rl.receipt_id
JOIN parts p ON p.id = rl.part_id
WHERE rl.code=$1 AND `+shared.NotDeleted("rl")+`
FOR UPDATE OF rl`, code))
}

func (t *txRepository) LockOldestDemand(ctx context.Context, partID int64) (Demand, bool, error) {
	return scanDemand(t.tx.QueryRow(ctx, demandQuery+` FOR UPDATE OF rl`, partID))
}

func (t *txRepository) InsertIssuance(ctx context.Context, iss Issuance) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO issuances (receipt_line_id, request_id, request_line_id, forced, quantity, issued_by, issued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		iss.ReceiptLineID, iss.RequestID, iss.RequestLineID, iss.Forced, iss.Quantity, iss.IssuedBy, iss.IssuedAt).Scan(&id)
	return id, err
}

// DecrementLineAvailable takes qty from the line's available counter. The
// guard in the WHERE clause is the concurrency defense: a competing batch
// that already consumed the quantity makes this affect zero rows.
func (t *txRepository) DecrementLineAvailable(ctx context.Context, lineID int64, qty int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE receipt_lines SET available = available - $2
WHERE id = $1 AND available >= $2`, lineID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOverAvailable
	}
	return nil
}

func (t *txRepository) DecrementPartStock(ctx context.Context, partID int64, qty int) error {
	_, err := t.tx.Exec(ctx, `UPDATE parts SET stock = stock - $2, updated_at = NOW() WHERE id = $1`, partID, qty)
	return err
}

func (t *txRepository) RequestLineIssuedTotal(ctx context.Context, requestLineID int64) (int, error) {
	var total int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM issuances
WHERE request_line_id = $1 AND `+shared.NotDeleted(""), requestLineID).Scan(&total)
	return total, err
}

func (t *txRepository) MarkFulfilled(ctx context.Context, requestLineID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE request_lines SET fulfilled = TRUE WHERE id = $1`, requestLineID)
	return err
}
