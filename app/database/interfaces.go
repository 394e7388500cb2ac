package database

import (
	"time"
)

type FeedRepository interface {
	GetFeed(id string) (*Feed, error)
	GetFeedByURL(owner int64, url string) (*Feed, error)
	GetAllFeeds() ([]Feed, error)
	GetDueFeeds(now time.Time) ([]Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(feed Feed) (string, error)
	UpdateLastPolled(id string, at time.Time) error
	SetPublishDelay(id string, delay time.Duration) error
	DeleteFeed(id string) error
}

type DestinationRepository interface {
	GetDestination(id string) (*Destination, error)
	GetDestinationByChatID(owner int64, chatID string) (*Destination, error)
	GetAllDestinations() ([]Destination, error)
	GetDestinationCount() (int, error)

	UpsertDestination(dest Destination) (string, error)
	DeleteDestination(id string) error
}

type SubscriptionRepository interface {
	GetSubscriptionsForFeed(feedID string) ([]Subscription, error)
	GetSubscriptionCount() (int, error)

	UpsertSubscription(sub Subscription) error
	DeleteSubscription(owner int64, destinationID, feedID string) error
}

// LedgerRepository is the dedup ledger over (feed, guid) pairs.
type LedgerRepository interface {
	IsSeen(feedID, guid string) (bool, error)
	// MarkSeen records the pair. Marking an already-seen pair is a no-op
	// reported via created=false, never an error.
	MarkSeen(feedID, guid string) (created bool, err error)
}

type DeliveryRepository interface {
	// Enqueue is idempotent on (owner, feed, destination, guid); a second
	// call for the same tuple reports created=false.
	Enqueue(task DeliveryTask) (created bool, err error)
	GetDueTasks(now time.Time, limit int) ([]DeliveryTask, error)
	MarkStatus(taskID, status string) error
	StatusCounts() (map[string]int, error)
}
