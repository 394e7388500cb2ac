package database

import (
	"fmt"
	"time"
)

type subscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// GetSubscriptionsForFeed returns every subscription of the feed across all
// owners. The ingestion pass fans out to exactly this set.
func (r *subscriptionRepository) GetSubscriptionsForFeed(feedID string) ([]Subscription, error) {
	rows, err := r.db.Query(`
		SELECT owner, destination_id, feed_id, tags, created_at
		FROM subscriptions
		WHERE feed_id = ?
		ORDER BY created_at
	`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		var createdMS int64
		if err := rows.Scan(&sub.Owner, &sub.DestinationID, &sub.FeedID, &sub.Tags, &createdMS); err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		sub.CreatedAt = time.UnixMilli(createdMS).UTC()
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}
	return subs, nil
}

func (r *subscriptionRepository) GetSubscriptionCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM subscriptions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get subscription count: %w", err)
	}
	return count, nil
}

func (r *subscriptionRepository) UpsertSubscription(sub Subscription) error {
	_, err := r.db.Exec(`
		INSERT INTO subscriptions (owner, destination_id, feed_id, tags, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner, destination_id, feed_id) DO UPDATE SET tags = excluded.tags
	`, sub.Owner, sub.DestinationID, sub.FeedID, sub.Tags, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) DeleteSubscription(owner int64, destinationID, feedID string) error {
	_, err := r.db.Exec(`
		DELETE FROM subscriptions WHERE owner = ? AND destination_id = ? AND feed_id = ?
	`, owner, destinationID, feedID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
