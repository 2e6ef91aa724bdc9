package requests

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/partline/partline/internal/shared"
)

type memoryRepo struct {
	parts    map[string]int64
	requests map[int64]*Request
	nextID   int64
	txFails  bool
}

func newMemoryRepo(partNumbers ...string) *memoryRepo {
	repo := &memoryRepo{parts: map[string]int64{}, requests: map[int64]*Request{}}
	for i, pn := range partNumbers {
		repo.parts[pn] = int64(i + 1)
	}
	return repo
}

type memoryTx struct {
	repo     *memoryRepo
	requests map[int64]*Request
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, requests: map[int64]*Request{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, req := range tx.requests {
		r.requests[id] = req
	}
	return nil
}

func (t *memoryTx) InsertRequest(_ context.Context, destination string, requestedBy int64, requestedAt time.Time) (int64, error) {
	t.repo.nextID++
	id := t.repo.nextID
	t.requests[id] = &Request{ID: id, Destination: destination, RequestedBy: requestedBy, RequestedAt: requestedAt}
	return id, nil
}

func (t *memoryTx) InsertLine(_ context.Context, requestID, partID int64, quantity int) (int64, error) {
	if t.repo.txFails {
		return 0, context.DeadlineExceeded
	}
	req := t.requests[requestID]
	line := RequestLine{ID: int64(len(req.Lines) + 1), RequestID: requestID, PartID: partID, Quantity: quantity}
	req.Lines = append(req.Lines, line)
	req.RequestedTotal += quantity
	return line.ID, nil
}

func (r *memoryRepo) ResolvePart(_ context.Context, partNumber string) (int64, error) {
	id, ok := r.parts[partNumber]
	if !ok {
		return 0, ErrUnknownPart
	}
	return id, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	out := *req
	out.Status = DeriveStatus(out.RequestedTotal, out.IssuedTotal)
	return out, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Request, shared.Pagination, error) {
	out := []Request{}
	for _, req := range r.requests {
		out = append(out, *req)
	}
	return out, shared.NewPagination(filter.Page, filter.PerPage, len(out)), nil
}

type captureNotifier struct {
	userID    int64
	requestID int64
	itemCount int
	url       string
	err       error
}

func (n *captureNotifier) RequestSubmitted(_ context.Context, userID, requestID int64, itemCount int, url string) error {
	n.userID, n.requestID, n.itemCount, n.url = userID, requestID, itemCount, url
	return n.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStageIncrementsBasket(t *testing.T) {
	repo := newMemoryRepo("PN-1")
	svc := NewService(testLogger(), repo, nil, nil, "http://example.test")

	basket, err := svc.Stage(context.Background(), nil, "PN-1")
	require.NoError(t, err)
	basket, err = svc.Stage(context.Background(), basket, "PN-1")
	require.NoError(t, err)
	require.Equal(t, 2, basket["PN-1"])
}

func TestStageUnknownPartLeavesBasketUntouched(t *testing.T) {
	repo := newMemoryRepo("PN-1")
	svc := NewService(testLogger(), repo, nil, nil, "http://example.test")

	basket := Basket{"PN-1": 1}
	got, err := svc.Stage(context.Background(), basket, "PN-404")
	require.ErrorIs(t, err, ErrUnknownPart)
	require.Equal(t, Basket{"PN-1": 1}, got)
}

func TestSubmitCreatesLinesPerDistinctPart(t *testing.T) {
	repo := newMemoryRepo("PN-1", "PN-2")
	notifier := &captureNotifier{}
	svc := NewService(testLogger(), repo, nil, notifier, "http://example.test")

	request, err := svc.Submit(context.Background(), SubmitInput{
		Destination: "Line KS",
		RequestedBy: 9,
		Basket:      Basket{"PN-1": 3, "PN-2": 1},
	})
	require.NoError(t, err)
	require.Len(t, request.Lines, 2)
	require.Equal(t, 4, request.RequestedTotal)
	require.Equal(t, StatusPending, request.Status)

	require.Equal(t, int64(9), notifier.userID)
	require.Equal(t, request.ID, notifier.requestID)
	require.Equal(t, 4, notifier.itemCount)
	require.Contains(t, notifier.url, "/requests/")
}

func TestSubmitRejectsEmptyBasket(t *testing.T) {
	repo := newMemoryRepo("PN-1")
	svc := NewService(testLogger(), repo, nil, nil, "http://example.test")

	_, err := svc.Submit(context.Background(), SubmitInput{Destination: "Gudang", RequestedBy: 1, Basket: Basket{}})
	require.ErrorIs(t, err, ErrEmptyBasket)
}

func TestSubmitRejectsUnknownDestination(t *testing.T) {
	repo := newMemoryRepo("PN-1")
	svc := NewService(testLogger(), repo, nil, nil, "http://example.test")

	_, err := svc.Submit(context.Background(), SubmitInput{
		Destination: "Line XX",
		RequestedBy: 1,
		Basket:      Basket{"PN-1": 1},
	})
	require.ErrorIs(t, err, ErrInvalidDestination)
}

func TestSubmitRollsBackOnStaleBasket(t *testing.T) {
	repo := newMemoryRepo("PN-1")
	svc := NewService(testLogger(), repo, nil, nil, "http://example.test")

	_, err := svc.Submit(context.Background(), SubmitInput{
		Destination: "Line SU",
		RequestedBy: 1,
		Basket:      Basket{"PN-1": 1, "PN-GONE": 2},
	})
	require.ErrorIs(t, err, ErrUnknownPart)
	require.Empty(t, repo.requests)
}

func TestSubmitSucceedsWhenNotifierFails(t *testing.T) {
	repo := newMemoryRepo("PN-1")
	notifier := &captureNotifier{err: context.DeadlineExceeded}
	svc := NewService(testLogger(), repo, nil, notifier, "http://example.test")

	request, err := svc.Submit(context.Background(), SubmitInput{
		Destination: "Gudang",
		RequestedBy: 2,
		Basket:      Basket{"PN-1": 5},
	})
	require.NoError(t, err)
	require.NotZero(t, request.ID)
}

func TestDeriveStatus(t *testing.T) {
	require.Equal(t, StatusPending, DeriveStatus(10, 0))
	require.Equal(t, StatusPending, DeriveStatus(0, 0))
	require.Equal(t, StatusPartially, DeriveStatus(10, 4))
	require.Equal(t, StatusFully, DeriveStatus(10, 10))
	require.Equal(t, StatusFully, DeriveStatus(10, 12))
}
