package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/partline/partline/jobs"
)

// Enqueuer submits push delivery tasks to the queue.
type Enqueuer interface {
	EnqueuePushSend(ctx context.Context, payload jobs.PushSendPayload) (*asynq.TaskInfo, error)
}

// Dispatcher turns domain events into queued push notifications. Delivery
// happens on the worker; callers treat a dispatch failure as non-fatal.
type Dispatcher struct {
	enqueuer Enqueuer
}

// NewDispatcher builds Dispatcher.
func NewDispatcher(enqueuer Enqueuer) *Dispatcher {
	return &Dispatcher{enqueuer: enqueuer}
}

func (d *Dispatcher) dispatch(ctx context.Context, payload jobs.PushSendPayload) error {
	if d == nil || d.enqueuer == nil {
		return fmt.Errorf("notify: dispatcher not configured")
	}
	_, err := d.enqueuer.EnqueuePushSend(ctx, payload)
	return err
}

// RequestSubmitted notifies the requester that their request was recorded.
func (d *Dispatcher) RequestSubmitted(ctx context.Context, userID, requestID int64, itemCount int, url string) error {
	return d.dispatch(ctx, jobs.PushSendPayload{
		UserID: userID,
		Title:  "Request submitted",
		Body:   fmt.Sprintf("Request #%d with %d item(s) was recorded.", requestID, itemCount),
		URL:    url,
	})
}

// LabelJobReady notifies the initiating user that their labels can be downloaded.
func (d *Dispatcher) LabelJobReady(ctx context.Context, userID int64, token, url string) error {
	return d.dispatch(ctx, jobs.PushSendPayload{
		UserID: userID,
		Title:  "Labels ready",
		Body:   fmt.Sprintf("Print job %s finished. Download your labels.", token),
		URL:    url,
	})
}

// LabelJobFailed notifies the initiating user that label generation failed.
func (d *Dispatcher) LabelJobFailed(ctx context.Context, userID int64, token, reason string) error {
	return d.dispatch(ctx, jobs.PushSendPayload{
		UserID: userID,
		Title:  "Labels failed",
		Body:   fmt.Sprintf("Print job %s failed: %s", token, reason),
	})
}
