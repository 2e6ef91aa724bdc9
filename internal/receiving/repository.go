package receiving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partline/partline/internal/platform/db"
	"github.com/partline/partline/internal/shared"
)

// Repository persists receipts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertReceipt(ctx context.Context, receivedBy int64, receivedAt time.Time) (int64, error)
	SetReceiptNumber(ctx context.Context, receiptID int64, number string) error
	InsertLine(ctx context.Context, line ReceiptLine) (int64, error)
	IncrementPartStock(ctx context.Context, partID int64, qty int) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction with
// serialization retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("receiving repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (t *txRepository) InsertReceipt(ctx context.Context, receivedBy int64, receivedAt time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO receipts (receipt_number, received_by, received_at)
VALUES ('', $1, $2) RETURNING id`, receivedBy, receivedAt).Scan(&id)
	return id, err
}

func (t *txRepository) SetReceiptNumber(ctx context.Context, receiptID int64, number string) error {
	_, err := t.tx.Exec(ctx, `UPDATE receipts SET receipt_number=$2 WHERE id=$1`, receiptID, number)
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (t *txRepository) InsertLine(ctx context.Context, line ReceiptLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO receipt_lines (receipt_id, part_id, quantity, available, code)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		line.ReceiptID, line.PartID, line.Quantity, line.Available, line.Code).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateCode
	}
	return id, err
}

func (t *txRepository) IncrementPartStock(ctx context.Context, partID int64, qty int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE parts SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, partID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownPart
	}
	return nil
}

// Get loads a receipt with its lines and part master fields.
func (r *Repository) Get(ctx context.Context, id int64) (Receipt, error) {
	var receipt Receipt
	err := r.pool.QueryRow(ctx, `SELECT id, receipt_number, COALESCE(received_by, 0), received_at, created_at
FROM receipts WHERE id=$1 AND `+shared.NotDeleted("")+``, id).
		Scan(&receipt.ID, &receipt.ReceiptNumber, &receipt.ReceivedBy, &receipt.ReceivedAt, &receipt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrReceiptNotFound
		}
		return Receipt{}, fmt.Errorf("receiving: get receipt: %w", err)
	}
	lines, err := r.linesForReceipt(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Lines = lines
	for _, line := range lines {
		receipt.TotalQuantity += line.Quantity
	}
	return receipt, nil
}

func (r *Repository) linesForReceipt(ctx context.Context, receiptID int64) ([]ReceiptLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT rl.id, rl.receipt_id, rl.part_id, p.part_number, COALESCE(p.part_name,''), rl.quantity, rl.available, rl.code
FROM receipt_lines rl
JOIN parts p ON p.id = rl.part_id
WHERE rl.receipt_id=$1 AND `+shared.NotDeleted("rl")+`
ORDER BY rl.id ASC`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("receiving: load lines: %w", err)
	}
	defer rows.Close()
	lines := []ReceiptLine{}
	for rows.Next() {
		var line ReceiptLine
		if err := rows.Scan(&line.ID, &line.ReceiptID, &line.PartID, &line.PartNumber, &line.PartName, &line.Quantity, &line.Available, &line.Code); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// LineIDsForReceipt returns the ids of a receipt's active lines, for label jobs.
func (r *Repository) LineIDsForReceipt(ctx context.Context, receiptID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM receipt_lines WHERE receipt_id=$1 AND `+shared.NotDeleted("")+` ORDER BY id ASC`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("receiving: line ids: %w", err)
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns receipts newest first, with aggregate totals per receipt.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Receipt, shared.Pagination, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM receipts WHERE `+shared.NotDeleted("")).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("receiving: count receipts: %w", err)
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.receipt_number, COALESCE(r.received_by, 0), r.received_at, r.created_at,
       COALESCE(SUM(rl.quantity), 0) AS total_qty,
       COUNT(DISTINCT rl.part_id) AS unique_parts
FROM receipts r
LEFT JOIN receipt_lines rl ON rl.receipt_id = r.id AND `+shared.NotDeleted("rl")+`
WHERE `+shared.NotDeleted("r")+`
GROUP BY r.id
ORDER BY r.received_at DESC, r.id DESC
LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("receiving: list receipts: %w", err)
	}
	defer rows.Close()
	receipts := []Receipt{}
	for rows.Next() {
		var receipt Receipt
		if err := rows.Scan(&receipt.ID, &receipt.ReceiptNumber, &receipt.ReceivedBy, &receipt.ReceivedAt, &receipt.CreatedAt, &receipt.TotalQuantity, &receipt.UniqueParts); err != nil {
			return nil, shared.Pagination{}, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, page, rows.Err()
}

// SoftDelete logically removes a receipt and its lines. Rows stay for audit;
// stock corrections, if any, are a separate manual operation.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE receipts SET deleted_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReceiptNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE receipt_lines SET deleted_at=NOW() WHERE receipt_id=$1 AND deleted_at IS NULL`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
