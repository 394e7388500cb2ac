package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedcourier/feedcourier/app/database"
	"github.com/feedcourier/feedcourier/app/feed"
)

// PollFeedTask runs one ingestion pass for one feed: fetch, detect novelty
// against the dedup ledger, and fan each new item out into the delivery
// queue. The same task type serves both the interval scheduler and the
// operator force-check, so the novelty/enqueue path is single.
type PollFeedTask struct {
	Task
	Feed     database.Feed
	parser   *feed.Parser
	subRepo  database.SubscriptionRepository
	feedRepo database.FeedRepository
	ledger   database.LedgerRepository
	delivery database.DeliveryRepository
	inflight *inflightSet

	// Execute outcome, read by ForceCheck after a synchronous run.
	enqueued   int
	fetchError error
	skipped    bool
}

func NewPollFeedTask(f database.Feed, parser *feed.Parser,
	feedRepo database.FeedRepository, subRepo database.SubscriptionRepository,
	ledger database.LedgerRepository, delivery database.DeliveryRepository,
	inflight *inflightSet) *PollFeedTask {
	return &PollFeedTask{
		Task:     NewTask(TaskTypePollFeed, f.ID),
		Feed:     f,
		parser:   parser,
		feedRepo: feedRepo,
		subRepo:  subRepo,
		ledger:   ledger,
		delivery: delivery,
		inflight: inflight,
	}
}

func (t *PollFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.inflight.TryAcquire(t.Feed.ID) {
		slog.Debug("Feed poll already in flight, skipping", "feed", t.Feed.ID)
		t.skipped = true
		return nil
	}
	defer t.inflight.Release(t.Feed.ID)

	now := time.Now().UTC()

	// The poll cadence advances whether the pass succeeds or not: a broken
	// source is retried at its next interval, never immediately.
	defer func() {
		if err := t.feedRepo.UpdateLastPolled(t.Feed.ID, now); err != nil {
			slog.Error("Failed to update last polled time", "feed", t.Feed.ID, "error", err)
		}
	}()

	_, items, err := t.parser.Fetch(ctx, t.Feed.URL)
	if err != nil {
		slog.Warn("Feed fetch failed", "feed", t.Feed.ID, "url", t.Feed.URL, "error", err)
		t.fetchError = err
		return nil
	}

	subs, err := t.subRepo.GetSubscriptionsForFeed(t.Feed.ID)
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	scheduledAt := now.Add(t.Feed.PublishDelay)
	newItems := 0
	droppedItems := 0

	// Sources commonly list newest first; walk backwards so a backlog is
	// ingested oldest-first.
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]

		if item.GUID == "" {
			slog.Warn("Item without usable identifier dropped", "feed", t.Feed.ID, "title", item.Title)
			droppedItems++
			continue
		}

		seen, err := t.ledger.IsSeen(t.Feed.ID, item.GUID)
		if err != nil {
			return fmt.Errorf("failed to check ledger: %w", err)
		}
		if seen {
			continue
		}

		// Record novelty before any delivery work, even with zero
		// subscriptions: ledger presence alone decides item novelty.
		if _, err := t.ledger.MarkSeen(t.Feed.ID, item.GUID); err != nil {
			return fmt.Errorf("failed to mark item seen: %w", err)
		}
		newItems++

		for _, sub := range subs {
			created, err := t.delivery.Enqueue(database.DeliveryTask{
				Owner:         sub.Owner,
				FeedID:        t.Feed.ID,
				DestinationID: sub.DestinationID,
				GUID:          item.GUID,
				ScheduledAt:   scheduledAt,
				Title:         item.Title,
				Link:          item.Link,
				Summary:       item.Summary,
				Tags:          sub.Tags,
			})
			if err != nil {
				return fmt.Errorf("failed to enqueue delivery task: %w", err)
			}
			if created {
				t.enqueued++
			}
		}
	}

	slog.Info("Task completed",
		"type", "PollFeed",
		"feed", t.Feed.ID,
		"duration", t.GetDuration(),
		"total", len(items),
		"new", newItems,
		"dropped", droppedItems,
		"subscriptions", len(subs),
		"enqueued", t.enqueued)

	return nil
}
