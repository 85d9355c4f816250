package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) CountSubscribers(ctx context.Context, channelID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1::uuid`, channelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return count, nil
}

func (r *SubscriptionRepository) CountSubscribedTo(ctx context.Context, subscriberID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1::uuid`, subscriberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return count, nil
}

func (r *SubscriptionRepository) IsSubscribed(ctx context.Context, subscriberID string, channelID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM subscriptions WHERE subscriber_id = $1::uuid AND channel_id = $2::uuid)`,
		subscriberID, channelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return exists, nil
}

func (r *SubscriptionRepository) Subscribe(ctx context.Context, subscriberID string, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (subscriber_id, channel_id) DO NOTHING`,
		subscriberID, channelID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Unsubscribe(ctx context.Context, subscriberID string, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM subscriptions WHERE subscriber_id = $1::uuid AND channel_id = $2::uuid`,
		subscriberID, channelID)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}
