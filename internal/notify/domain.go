package notify

import (
	"errors"
	"time"
)

// Subscription is one browser push endpoint registered by a user.
type Subscription struct {
	ID        int64
	UserID    int64
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

// Message is the payload shown by the service worker.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

var (
	// ErrSubscriptionNotFound indicates an unknown endpoint.
	ErrSubscriptionNotFound = errors.New("notify: subscription not found")
	// ErrInvalidSubscription indicates a subscription missing endpoint or keys.
	ErrInvalidSubscription = errors.New("notify: endpoint and keys required")
)
