package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/partline/partline/internal/observability"
	"github.com/partline/partline/jobs"
)

const sendConcurrency = 4

// SubscriptionStore is the subset of the repository the sender needs.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID int64) ([]Subscription, error)
	Prune(ctx context.Context, id int64) error
}

// VAPIDConfig carries the web push signing material.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// pusher is swapped in tests; the real one encrypts and POSTs via webpush-go.
type pusher interface {
	Send(ctx context.Context, sub *webpush.Subscription, message []byte, options *webpush.Options) (*http.Response, error)
}

type webpushClient struct{}

func (webpushClient) Send(ctx context.Context, sub *webpush.Subscription, message []byte, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, message, sub, options)
}

// Sender delivers queued push notifications to every subscription of the
// target user. Delivery failures are logged, not retried; subscriptions the
// push service reports gone are pruned.
type Sender struct {
	logger  *slog.Logger
	store   SubscriptionStore
	vapid   VAPIDConfig
	metrics *observability.Metrics
	client  pusher
}

// NewSender builds Sender.
func NewSender(logger *slog.Logger, store SubscriptionStore, vapid VAPIDConfig, metrics *observability.Metrics) *Sender {
	return &Sender{logger: logger, store: store, vapid: vapid, metrics: metrics, client: webpushClient{}}
}

// DisabledHandler drains push tasks when no VAPID keys are configured, so
// the API can keep enqueueing without the queue retrying against a missing
// handler forever.
func DisabledHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload jobs.PushSendPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Warn("push delivery disabled, dropping notification",
			slog.Int64("user_id", payload.UserID), slog.String("title", payload.Title))
		return nil
	}
}

// Handle fulfils the asynq.HandlerFunc contract for push:send tasks.
func (s *Sender) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.PushSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.UserID == 0 {
		return asynq.SkipRetry
	}
	s.SendToUser(ctx, payload.UserID, Message{Title: payload.Title, Body: payload.Body, URL: payload.URL})
	return nil
}

// SendToUser fans the message out to every subscription of the user.
func (s *Sender) SendToUser(ctx context.Context, userID int64, msg Message) {
	subs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("push: list subscriptions", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	if len(subs) == 0 {
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("push: marshal message", slog.Any("error", err))
		return
	}
	options := &webpush.Options{
		Subscriber:      s.vapid.Subject,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             60,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sendConcurrency)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			s.deliver(ctx, sub, body, options)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Sender) deliver(ctx context.Context, sub Subscription, body []byte, options *webpush.Options) {
	resp, err := s.client.Send(ctx, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, body, options)
	if err != nil {
		s.count("error")
		s.logger.Warn("push: delivery failed", slog.Int64("subscription_id", sub.ID), slog.Any("error", err))
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		s.count("pruned")
		if err := s.store.Prune(ctx, sub.ID); err != nil {
			s.logger.Warn("push: prune failed", slog.Int64("subscription_id", sub.ID), slog.Any("error", err))
		}
	case resp.StatusCode >= 400:
		s.count("error")
		s.logger.Warn("push: rejected", slog.Int64("subscription_id", sub.ID), slog.Int("status", resp.StatusCode))
	default:
		s.count("sent")
	}
}

func (s *Sender) count(outcome string) {
	if s.metrics != nil {
		s.metrics.CountPushSend(outcome)
	}
}
