package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) count(ctx context.Context, op string, query string, args ...any) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

func (r *SubscriptionRepository) CountSubscribers(ctx context.Context, channelID string) (int, error) {
	return r.count(ctx, "count subscribers",
		`SELECT COUNT(*) FROM subscriptions WHERE channel_id = ?`, channelID)
}

func (r *SubscriptionRepository) CountSubscribedTo(ctx context.Context, subscriberID string) (int, error) {
	return r.count(ctx, "count subscriptions",
		`SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = ?`, subscriberID)
}

func (r *SubscriptionRepository) IsSubscribed(ctx context.Context, subscriberID string, channelID string) (bool, error) {
	count, err := r.count(ctx, "check subscription",
		`SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?`, subscriberID, channelID)
	return count > 0, err
}

func (r *SubscriptionRepository) Subscribe(ctx context.Context, subscriberID string, channelID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (subscriber_id, channel_id) DO NOTHING`,
		subscriberID, channelID, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Unsubscribe(ctx context.Context, subscriberID string, channelID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?`,
		subscriberID, channelID)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}
