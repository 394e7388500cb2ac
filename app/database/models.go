package database

import (
	"time"
)

// Delivery task statuses. A task is created pending and transitions exactly
// once to published or failed; terminal rows are kept as an audit trail.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// Feed represents a polled source. Owner 0 means the feed is global
// (single-tenant mode).
type Feed struct {
	ID           string
	Owner        int64
	URL          string
	Name         string
	PollInterval time.Duration
	PublishDelay time.Duration
	LastPolledAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Destination is an addressable delivery endpoint (a Telegram chat).
type Destination struct {
	ID        string
	Owner     int64
	ChatID    string
	Name      string
	CreatedAt time.Time
}

// Subscription links a feed to a destination with an optional hashtag
// annotation. At most one per (owner, destination, feed).
type Subscription struct {
	Owner         int64
	DestinationID string
	FeedID        string
	Tags          string
	CreatedAt     time.Time
}

// DeliveryTask is one unit of work to deliver one item to one destination.
// Item fields are denormalized at enqueue time so a later feed edit cannot
// change what gets published.
type DeliveryTask struct {
	ID            string
	Owner         int64
	FeedID        string
	DestinationID string
	GUID          string
	ScheduledAt   time.Time
	Status        string
	Title         string
	Link          string
	Summary       string
	Tags          string
	CreatedAt     time.Time
}
