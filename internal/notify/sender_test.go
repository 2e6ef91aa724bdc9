package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/partline/partline/jobs"
)

type memoryStore struct {
	mu     sync.Mutex
	subs   map[int64][]Subscription
	pruned []int64
}

func (s *memoryStore) ListByUser(_ context.Context, userID int64) ([]Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[userID], nil
}

func (s *memoryStore) Prune(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, id)
	return nil
}

type stubPusher struct {
	mu       sync.Mutex
	statuses map[string]int
	sent     []string
}

func (p *stubPusher) Send(_ context.Context, sub *webpush.Subscription, _ []byte, _ *webpush.Options) (*http.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sub.Endpoint)
	status := http.StatusCreated
	if s, ok := p.statuses[sub.Endpoint]; ok {
		status = s
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func newTestSender(store *memoryStore, push *stubPusher) *Sender {
	sender := NewSender(slog.New(slog.NewTextHandler(io.Discard, nil)), store, VAPIDConfig{
		PublicKey: "pub", PrivateKey: "priv", Subject: "mailto:ops@example.test",
	}, nil)
	sender.client = push
	return sender
}

func TestSendToUserFansOut(t *testing.T) {
	store := &memoryStore{subs: map[int64][]Subscription{
		7: {
			{ID: 1, UserID: 7, Endpoint: "https://push.example/a"},
			{ID: 2, UserID: 7, Endpoint: "https://push.example/b"},
		},
	}}
	push := &stubPusher{}
	sender := newTestSender(store, push)

	sender.SendToUser(context.Background(), 7, Message{Title: "hello"})
	require.ElementsMatch(t, []string{"https://push.example/a", "https://push.example/b"}, push.sent)
	require.Empty(t, store.pruned)
}

func TestSendToUserPrunesGoneSubscriptions(t *testing.T) {
	store := &memoryStore{subs: map[int64][]Subscription{
		7: {
			{ID: 1, UserID: 7, Endpoint: "https://push.example/alive"},
			{ID: 2, UserID: 7, Endpoint: "https://push.example/gone"},
		},
	}}
	push := &stubPusher{statuses: map[string]int{"https://push.example/gone": http.StatusGone}}
	sender := newTestSender(store, push)

	sender.SendToUser(context.Background(), 7, Message{Title: "hello"})
	require.Equal(t, []int64{2}, store.pruned)
}

func TestHandleRejectsBadPayload(t *testing.T) {
	sender := newTestSender(&memoryStore{subs: map[int64][]Subscription{}}, &stubPusher{})

	err := sender.Handle(context.Background(), asynq.NewTask(jobs.TaskTypePushSend, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	data, _ := json.Marshal(jobs.PushSendPayload{UserID: 0})
	err = sender.Handle(context.Background(), asynq.NewTask(jobs.TaskTypePushSend, data))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

// Without VAPID keys the worker still consumes push tasks so they do not
// sit in the queue retrying against a missing handler.
func TestDisabledHandlerDrainsTasks(t *testing.T) {
	handler := DisabledHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, _ := json.Marshal(jobs.PushSendPayload{UserID: 7, Title: "Labels ready"})
	err := handler(context.Background(), asynq.NewTask(jobs.TaskTypePushSend, data))
	require.NoError(t, err)

	err = handler(context.Background(), asynq.NewTask(jobs.TaskTypePushSend, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
