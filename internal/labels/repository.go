package labels

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists print jobs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a queued print job.
func (r *Repository) Create(ctx context.Context, token string, requestedBy int64, lineIDs []int64) (PrintJob, error) {
	var job PrintJob
	err := r.pool.QueryRow(ctx, `INSERT INTO print_jobs (token, requested_by, line_ids, status)
VALUES ($1, $2, $3, $4)
RETURNING id, token, requested_by, line_ids, status, COALESCE(file_path,''), COALESCE(error_message,''), created_at, updated_at`,
		token, requestedBy, lineIDs, StatusQueued).
		Scan(&job.ID, &job.Token, &job.RequestedBy, &job.LineIDs, &job.Status, &job.FilePath, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return PrintJob{}, fmt.Errorf("labels: create job: %w", err)
	}
	return job, nil
}

// GetByToken loads one print job.
func (r *Repository) GetByToken(ctx context.Context, token string) (PrintJob, error) {
	var job PrintJob
	err := r.pool.QueryRow(ctx, `SELECT id, token, requested_by, line_ids, status, COALESCE(file_path,''), COALESCE(error_message,''), created_at, updated_at
FROM print_jobs WHERE token=$1`, token).
		Scan(&job.ID, &job.Token, &job.RequestedBy, &job.LineIDs, &job.Status, &job.FilePath, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PrintJob{}, ErrJobNotFound
	}
	if err != nil {
		return PrintJob{}, fmt.Errorf("labels: get job: %w", err)
	}
	return job, nil
}

// MarkProcessing transitions a queued job; returns ErrInvalidStatus if the
// job already moved on, so a redelivered task does not rerun a finished job.
func (r *Repository) MarkProcessing(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE print_jobs SET status=$2, updated_at=NOW() WHERE token=$1 AND status=$3`,
		token, StatusProcessing, StatusQueued)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// MarkReady records the stored PDF path.
func (r *Repository) MarkReady(ctx context.Context, token, filePath string) error {
	_, err := r.pool.Exec(ctx, `UPDATE print_jobs SET status=$2, file_path=$3, error_message='', updated_at=NOW() WHERE token=$1`,
		token, StatusReady, filePath)
	return err
}

// MarkFailed records the terminal failure reason.
func (r *Repository) MarkFailed(ctx context.Context, token, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE print_jobs SET status=$2, error_message=$3, updated_at=NOW() WHERE token=$1`,
		token, StatusFailed, reason)
	return err
}

// LabelRows loads the label data for the given receipt lines, joined with
// part master and receipt header fields.
func (r *Repository) LabelRows(ctx context.Context, lineIDs []int64) ([]Label, error) {
	rows, err := r.pool.Query(ctx, `SELECT rl.code, p.part_number, COALESCE(p.part_name,''), rl.quantity,
       rc.receipt_number, COALESCE(rc.received_by, 0), rc.received_at
FROM receipt_lines rl
JOIN parts p ON p.id = rl.part_id
JOIN receipts rc ON rc.id = rl.receipt_id
WHERE rl.id = ANY($1) AND rl.deleted_at IS NULL
ORDER BY rl.id ASC`, lineIDs)
	if err != nil {
		return nil, fmt.Errorf("labels: load rows: %w", err)
	}
	defer rows.Close()
	labels := []Label{}
	for rows.Next() {
		var label Label
		var receivedBy int64
		if err := rows.Scan(&label.Code, &label.PartNumber, &label.PartName, &label.Quantity, &label.Batch, &receivedBy, &label.ReceivedAt); err != nil {
			return nil, err
		}
		label.Receiver = fmt.Sprintf("user %d", receivedBy)
		labels = append(labels, label)
	}
	return labels, rows.Err()
}
