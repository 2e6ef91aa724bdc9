package issuance

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type memLine struct {
	id             int64
	code           string
	partID         int64
	classification string
	available      int
}

type memRequestLine struct {
	id          int64
	requestID   int64
	partID      int64
	quantity    int
	fulfilled   bool
	requestedAt time.Time
}

type memState struct {
	lines        map[string]*memLine
	stock        map[int64]int
	requestLines []*memRequestLine
	issuances    []Issuance
	nextID       int64
}

func (s *memState) clone() *memState {
	cp := &memState{
		lines:     map[string]*memLine{},
		stock:     map[int64]int{},
		issuances: append([]Issuance{}, s.issuances...),
		nextID:    s.nextID,
	}
	for code, line := range s.lines {
		l := *line
		cp.lines[code] = &l
	}
	for id, qty := range s.stock {
		cp.stock[id] = qty
	}
	for _, rl := range s.requestLines {
		r := *rl
		cp.requestLines = append(cp.requestLines, &r)
	}
	return cp
}

type memoryRepo struct {
	state *memState
	// onCommit runs once at commit time in place of the storage engine's
	// serialization check; it may mutate state and return the conflict.
	onCommit func(*memState) error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memState{lines: map[string]*memLine{}, stock: map[int64]int{}}}
}

func (r *memoryRepo) addLine(code string, partID int64, classification string, available int) {
	r.state.nextID++
	r.state.lines[code] = &memLine{id: r.state.nextID, code: code, partID: partID, classification: classification, available: available}
	r.state.stock[partID] += available
}

func (r *memoryRepo) addRequestLine(requestID, partID int64, quantity int, requestedAt time.Time) int64 {
	r.state.nextID++
	r.state.requestLines = append(r.state.requestLines, &memRequestLine{
		id: r.state.nextID, requestID: requestID, partID: partID, quantity: quantity, requestedAt: requestedAt,
	})
	return r.state.nextID
}

func (r *memoryRepo) requestLine(id int64) *memRequestLine {
	for _, rl := range r.state.requestLines {
		if rl.id == id {
			return rl
		}
	}
	return nil
}

type memoryTx struct {
	state *memState
}

// WithTx mirrors the repository contract: snapshot isolation per attempt
// and a bounded retry when the commit loses a serialization race.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = r.runTx(ctx, fn)
		var pgErr *pgconn.PgError
		if err == nil || !errors.As(err, &pgErr) || pgErr.Code != "40001" {
			return err
		}
	}
	return err
}

func (r *memoryRepo) runTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{state: r.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if r.onCommit != nil {
		hook := r.onCommit
		r.onCommit = nil
		if err := hook(r.state); err != nil {
			return err
		}
	}
	r.state = tx.state
	return nil
}

func lineView(l *memLine) LineView {
	return LineView{ID: l.id, Code: l.code, PartID: l.partID, Classification: l.classification, Available: l.available}
}

func (r *memoryRepo) FindLineByCode(_ context.Context, code string) (LineView, error) {
	line, ok := r.state.lines[code]
	if !ok {
		return LineView{}, ErrLineNotFound
	}
	return lineView(line), nil
}

func oldestDemand(state *memState, partID int64) (Demand, bool) {
	open := []*memRequestLine{}
	for _, rl := range state.requestLines {
		if rl.partID == partID && !rl.fulfilled {
			open = append(open, rl)
		}
	}
	if len(open) == 0 {
		return Demand{}, false
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].requestedAt.Equal(open[j].requestedAt) {
			return open[i].requestedAt.Before(open[j].requestedAt)
		}
		return open[i].id < open[j].id
	})
	winner := open[0]
	issued := issuedTotal(state, winner.id)
	return Demand{RequestID: winner.requestID, RequestLineID: winner.id, Requested: winner.quantity, IssuedSoFar: issued}, true
}

func issuedTotal(state *memState, requestLineID int64) int {
	total := 0
	for _, iss := range state.issuances {
		if iss.RequestLineID != nil && *iss.RequestLineID == requestLineID {
			total += iss.Quantity
		}
	}
	return total
}

func (r *memoryRepo) PeekOldestDemand(_ context.Context, partID int64) (Demand, bool, error) {
	demand, found := oldestDemand(r.state, partID)
	return demand, found, nil
}

func (t *memoryTx) LockLineByCode(_ context.Context, code string) (LineView, error) {
	line, ok := t.state.lines[code]
	if !ok {
		return LineView{}, ErrLineNotFound
	}
	return lineView(line), nil
}

func (t *memoryTx) LockOldestDemand(_ context.Context, partID int64) (Demand, bool, error) {
	demand, found := oldestDemand(t.state, partID)
	return demand, found, nil
}

func (t *memoryTx) InsertIssuance(_ context.Context, iss Issuance) (int64, error) {
	t.state.nextID++
	iss.ID = t.state.nextID
	t.state.issuances = append(t.state.issuances, iss)
	return iss.ID, nil
}

func (t *memoryTx) DecrementLineAvailable(_ context.Context, lineID int64, qty int) error {
	for _, line := range t.state.lines {
		if line.id == lineID {
			if line.available < qty {
				return ErrOverAvailable
			}
			line.available -= qty
			return nil
		}
	}
	return ErrLineNotFound
}

func (t *memoryTx) DecrementPartStock(_ context.Context, partID int64, qty int) error {
	t.state.stock[partID] -= qty
	return nil
}

func (t *memoryTx) RequestLineIssuedTotal(_ context.Context, requestLineID int64) (int, error) {
	return issuedTotal(t.state, requestLineID), nil
}

func (t *memoryTx) MarkFulfilled(_ context.Context, requestLineID int64) error {
	for _, rl := range t.state.requestLines {
		if rl.id == requestLineID {
			rl.fulfilled = true
			return nil
		}
	}
	return nil
}

func TestStageUnknownCode(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.Stage(context.Background(), "RCPT-NOPE", 0)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestStageExhaustedLine(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 10)
	repo.state.lines["RCPT-1"].available = 0
	svc := NewService(repo, nil, nil)

	_, err := svc.Stage(context.Background(), "RCPT-1", 0)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestStageDefaultQuantityByClassification(t *testing.T) {
	cases := []struct {
		classification string
		available      int
		want           int
	}{
		{"small", 37, 37},
		{"medium", 250, 100},
		{"medium", 40, 40},
		{"big", 250, 72},
		{"big", 30, 30},
		{"draft", 50, 1},
	}
	for _, tc := range cases {
		repo := newMemoryRepo()
		repo.addLine("RCPT-1", 1, tc.classification, tc.available)
		svc := NewService(repo, nil, nil)

		staged, err := svc.Stage(context.Background(), "RCPT-1", 0)
		require.NoError(t, err)
		require.Equal(t, tc.want, staged.ProposedQty, "classification %s", tc.classification)
		require.True(t, staged.Forced)
	}
}

func TestStageOverrideCappedByAvailable(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 10)
	svc := NewService(repo, nil, nil)

	staged, err := svc.Stage(context.Background(), "RCPT-1", 8)
	require.NoError(t, err)
	require.Equal(t, 8, staged.ProposedQty)

	_, err = svc.Stage(context.Background(), "RCPT-1", 11)
	require.ErrorIs(t, err, ErrOverAvailable)
}

func TestStageReportsOldestDemand(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 20)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	older := repo.addRequestLine(100, 1, 5, base)
	repo.addRequestLine(101, 1, 8, base.Add(time.Minute))
	svc := NewService(repo, nil, nil)

	staged, err := svc.Stage(context.Background(), "RCPT-1", 0)
	require.NoError(t, err)
	require.False(t, staged.Forced)
	require.Equal(t, older, staged.RequestLineID)
	require.Equal(t, int64(100), staged.RequestID)
	require.Equal(t, 5, staged.Outstanding)
}

func TestCommitMatchesFIFO(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 20)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	older := repo.addRequestLine(100, 1, 5, base)
	newer := repo.addRequestLine(101, 1, 8, base.Add(time.Minute))
	svc := NewService(repo, nil, nil)

	issued, err := svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 5}}, 1, time.Time{})
	require.NoError(t, err)
	require.Len(t, issued, 1)
	require.False(t, issued[0].Forced)
	require.Equal(t, older, *issued[0].RequestLineID)
	require.True(t, repo.requestLine(older).fulfilled)
	require.False(t, repo.requestLine(newer).fulfilled)
}

func TestCommitForcedWithoutDemand(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 20)
	svc := NewService(repo, nil, nil)

	issued, err := svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 3}}, 1, time.Time{})
	require.NoError(t, err)
	require.True(t, issued[0].Forced)
	require.Nil(t, issued[0].RequestID)
	require.Nil(t, issued[0].RequestLineID)
	require.Equal(t, 17, repo.state.lines["RCPT-1"].available)
	require.Equal(t, 17, repo.state.stock[1])
}

func TestCommitBatchAtomicity(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 10)
	repo.addLine("RCPT-2", 2, "small", 5)
	repo.addLine("RCPT-3", 3, "small", 0)
	svc := NewService(repo, nil, nil)

	_, err := svc.CommitBatch(context.Background(), []CommitEntry{
		{Code: "RCPT-1", Quantity: 4},
		{Code: "RCPT-2", Quantity: 2},
		{Code: "RCPT-3", Quantity: 1},
	}, 1, time.Time{})
	require.ErrorIs(t, err, ErrExhausted)
	require.Empty(t, repo.state.issuances)
	require.Equal(t, 10, repo.state.lines["RCPT-1"].available)
	require.Equal(t, 5, repo.state.lines["RCPT-2"].available)
	require.Equal(t, 10, repo.state.stock[1])
	require.Equal(t, 5, repo.state.stock[2])
}

func TestCommitRejectsOverAvailable(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 4)
	svc := NewService(repo, nil, nil)

	_, err := svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 5}}, 1, time.Time{})
	require.ErrorIs(t, err, ErrOverAvailable)
	require.Equal(t, 4, repo.state.lines["RCPT-1"].available)
}

func TestCommitFulfillsOnlyAtFullCoverage(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 20)
	rl := repo.addRequestLine(100, 1, 10, time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(repo, nil, nil)

	_, err := svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 4}}, 1, time.Time{})
	require.NoError(t, err)
	require.False(t, repo.requestLine(rl).fulfilled)

	_, err = svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 6}}, 1, time.Time{})
	require.NoError(t, err)
	require.True(t, repo.requestLine(rl).fulfilled)
}

func TestCommitValidatesInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.CommitBatch(context.Background(), nil, 1, time.Time{})
	require.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 0}}, 1, time.Time{})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

// Two requests queue up demand for one part, two sequential commits drain
// the receipt line in FIFO order.
func TestTwoRequestDrainScenario(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 20)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	q1 := repo.addRequestLine(100, 1, 5, base)
	q2 := repo.addRequestLine(101, 1, 8, base.Add(time.Minute))
	svc := NewService(repo, nil, nil)

	first, err := svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 5}}, 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, q1, *first[0].RequestLineID)

	second, err := svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 8}}, 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, q2, *second[0].RequestLineID)

	require.True(t, repo.requestLine(q1).fulfilled)
	require.True(t, repo.requestLine(q2).fulfilled)
	require.Equal(t, 7, repo.state.lines["RCPT-1"].available)
	require.Equal(t, 7, repo.state.stock[1])
}

// A commit that loses a serialization race is retried on a fresh
// transaction, which must re-resolve demand against live state instead of
// replaying the stale match.
func TestCommitRetriedAfterSerializationConflictResolvesFreshDemand(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLine("RCPT-1", 1, "small", 20)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	q1 := repo.addRequestLine(100, 1, 5, base)
	q2 := repo.addRequestLine(101, 1, 8, base.Add(time.Minute))

	// Concurrent winner: issues 5 against the oldest line and fulfils it,
	// then our first commit fails with SQLSTATE 40001.
	repo.onCommit = func(state *memState) error {
		reqID, rlID := int64(100), q1
		line := state.lines["RCPT-1"]
		line.available -= 5
		state.stock[1] -= 5
		state.nextID++
		state.issuances = append(state.issuances, Issuance{
			ID:            state.nextID,
			ReceiptLineID: line.id,
			RequestID:     &reqID,
			RequestLineID: &rlID,
			Quantity:      5,
			IssuedBy:      2,
			IssuedAt:      base,
		})
		for _, rl := range state.requestLines {
			if rl.id == rlID {
				rl.fulfilled = true
			}
		}
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}
	svc := NewService(repo, nil, nil)

	issued, err := svc.CommitBatch(context.Background(), []CommitEntry{{Code: "RCPT-1", Quantity: 8}}, 1, time.Time{})
	require.NoError(t, err)
	require.Len(t, issued, 1)
	require.False(t, issued[0].Forced)
	require.NotNil(t, issued[0].RequestLineID)
	require.Equal(t, q2, *issued[0].RequestLineID)

	require.True(t, repo.requestLine(q1).fulfilled)
	require.True(t, repo.requestLine(q2).fulfilled)
	require.Equal(t, 7, repo.state.lines["RCPT-1"].available)
	require.Equal(t, 7, repo.state.stock[1])
}
