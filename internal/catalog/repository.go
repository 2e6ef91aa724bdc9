package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partline/partline/internal/shared"
)

// Repository persists part master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partColumns = `id, part_number, COALESCE(part_name,''), COALESCE(model,''), COALESCE(variant,''), classification, stock, COALESCE(homeline,''), COALESCE(address,''), created_at, updated_at`

func scanPart(row pgx.Row) (Part, error) {
	var p Part
	err := row.Scan(&p.ID, &p.PartNumber, &p.PartName, &p.Model, &p.Variant, &p.Classification, &p.Stock, &p.Homeline, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a new part with zero stock.
func (r *Repository) Create(ctx context.Context, input PartInput) (Part, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO parts (part_number, part_name, model, variant, classification, stock, homeline, address)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
RETURNING `+partColumns,
		input.PartNumber, input.PartName, input.Model, input.Variant, input.Classification, input.Homeline, input.Address)
	part, err := scanPart(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Part{}, ErrDuplicatePartNumber
		}
		return Part{}, fmt.Errorf("catalog: create part: %w", err)
	}
	return part, nil
}

// Update rewrites the mutable master fields. Stock is untouched.
func (r *Repository) Update(ctx context.Context, id int64, input PartInput) (Part, error) {
	row := r.pool.QueryRow(ctx, `UPDATE parts
SET part_number=$2, part_name=$3, model=$4, variant=$5, classification=$6, homeline=$7, address=$8, updated_at=NOW()
WHERE id=$1
RETURNING `+partColumns,
		id, input.PartNumber, input.PartName, input.Model, input.Variant, input.Classification, input.Homeline, input.Address)
	part, err := scanPart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Part{}, ErrPartNotFound
		}
		if isUniqueViolation(err) {
			return Part{}, ErrDuplicatePartNumber
		}
		return Part{}, fmt.Errorf("catalog: update part: %w", err)
	}
	return part, nil
}

// GetByID loads a part by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (Part, error) {
	part, err := scanPart(r.pool.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Part{}, ErrPartNotFound
		}
		return Part{}, fmt.Errorf("catalog: get part: %w", err)
	}
	return part, nil
}

// GetByPartNumber loads a part by its unique part number.
func (r *Repository) GetByPartNumber(ctx context.Context, partNumber string) (Part, error) {
	part, err := scanPart(r.pool.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE part_number=$1`, partNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Part{}, ErrPartNotFound
		}
		return Part{}, fmt.Errorf("catalog: get part by number: %w", err)
	}
	return part, nil
}

// List returns parts ordered by part number with pagination metadata.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Part, shared.Pagination, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM parts`).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("catalog: count parts: %w", err)
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	rows, err := r.pool.Query(ctx, `SELECT `+partColumns+` FROM parts ORDER BY part_number ASC LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("catalog: list parts: %w", err)
	}
	defer rows.Close()
	parts := []Part{}
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		parts = append(parts, part)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, err
	}
	return parts, page, nil
}

// Search matches part numbers by substring, ordered by part number.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]Part, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT `+partColumns+` FROM parts WHERE part_number ILIKE '%' || $1 || '%' ORDER BY part_number ASC LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: search parts: %w", err)
	}
	defer rows.Close()
	parts := []Part{}
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parts, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
