package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/partline/partline/internal/shared"
)

type memoryRepo struct {
	parts  map[int64]Part
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{parts: make(map[int64]Part)}
}

func (r *memoryRepo) Create(ctx context.Context, input PartInput) (Part, error) {
	for _, p := range r.parts {
		if p.PartNumber == input.PartNumber {
			return Part{}, ErrDuplicatePartNumber
		}
	}
	r.nextID++
	part := Part{
		ID:             r.nextID,
		PartNumber:     input.PartNumber,
		PartName:       input.PartName,
		Model:          input.Model,
		Variant:        input.Variant,
		Classification: input.Classification,
		Homeline:       input.Homeline,
		Address:        input.Address,
	}
	r.parts[part.ID] = part
	return part, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, input PartInput) (Part, error) {
	part, ok := r.parts[id]
	if !ok {
		return Part{}, ErrPartNotFound
	}
	part.PartNumber = input.PartNumber
	part.PartName = input.PartName
	part.Classification = input.Classification
	r.parts[id] = part
	return part, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (Part, error) {
	part, ok := r.parts[id]
	if !ok {
		return Part{}, ErrPartNotFound
	}
	return part, nil
}

func (r *memoryRepo) GetByPartNumber(ctx context.Context, partNumber string) (Part, error) {
	for _, p := range r.parts {
		if p.PartNumber == partNumber {
			return p, nil
		}
	}
	return Part{}, ErrPartNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Part, shared.Pagination, error) {
	parts := make([]Part, 0, len(r.parts))
	for _, p := range r.parts {
		parts = append(parts, p)
	}
	return parts, shared.NewPagination(filter.Page, filter.PerPage, len(parts)), nil
}

func (r *memoryRepo) Search(ctx context.Context, query string, limit int) ([]Part, error) {
	parts := []Part{}
	for _, p := range r.parts {
		if strings.Contains(strings.ToLower(p.PartNumber), strings.ToLower(query)) {
			parts = append(parts, p)
		}
	}
	return parts, nil
}

func TestCreateDefaultsToDraftClassification(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	part, err := svc.Create(ctx, PartInput{PartNumber: "KP-1001", PartName: "Bracket"})
	require.NoError(t, err)
	require.Equal(t, ClassificationDraft, part.Classification)
	require.Equal(t, 0, part.Stock)
}

func TestCreateRejectsUnknownClassification(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), PartInput{PartNumber: "KP-1002", Classification: "huge"})
	require.ErrorIs(t, err, ErrInvalidClassification)
}

func TestCreateRejectsDuplicatePartNumber(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, PartInput{PartNumber: "KP-1003", Classification: ClassificationSmall})
	require.NoError(t, err)
	_, err = svc.Create(ctx, PartInput{PartNumber: "KP-1003", Classification: ClassificationBig})
	require.ErrorIs(t, err, ErrDuplicatePartNumber)
}

func TestLookupByPartNumber(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, PartInput{PartNumber: "KP-2001", Classification: ClassificationMedium})
	require.NoError(t, err)

	found, err := svc.Lookup(ctx, " KP-2001 ")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = svc.Lookup(ctx, "KP-9999")
	require.ErrorIs(t, err, ErrPartNotFound)
}
