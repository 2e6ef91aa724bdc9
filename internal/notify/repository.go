package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists push subscriptions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert stores a subscription, refreshing the keys when the endpoint is
// already registered for the user.
func (r *Repository) Upsert(ctx context.Context, sub Subscription) (Subscription, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
RETURNING id, created_at`, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth).
		Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return Subscription{}, fmt.Errorf("notify: upsert subscription: %w", err)
	}
	return sub, nil
}

// DeleteByEndpoint removes one subscription of a user.
func (r *Repository) DeleteByEndpoint(ctx context.Context, userID int64, endpoint string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE user_id=$1 AND endpoint=$2`, userID, endpoint)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ListByUser returns every subscription of a user.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions WHERE user_id=$1 ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("notify: list subscriptions: %w", err)
	}
	defer rows.Close()
	subs := []Subscription{}
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Prune removes a subscription the push service reported gone.
func (r *Repository) Prune(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE id=$1`, id)
	return err
}
