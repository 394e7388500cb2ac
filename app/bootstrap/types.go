package bootstrap

// File is the declarative bootstrap document. Feeds and destinations are
// upserted idempotently, so the file can be re-applied on every start.
type File struct {
	Feeds         []FeedEntry         `yaml:"feeds"`
	Destinations  []DestinationEntry  `yaml:"destinations"`
	Subscriptions []SubscriptionEntry `yaml:"subscriptions"`
}

type FeedEntry struct {
	URL          string `yaml:"url"`
	Name         string `yaml:"name"`
	Owner        int64  `yaml:"owner"`
	PollInterval int    `yaml:"poll_interval"` // seconds
	PublishDelay int    `yaml:"publish_delay"` // seconds
}

type DestinationEntry struct {
	ChatID string `yaml:"chat_id"`
	Name   string `yaml:"name"`
	Owner  int64  `yaml:"owner"`
}

// SubscriptionEntry links a feed (by url) to a destination (by chat id).
type SubscriptionEntry struct {
	Feed        string `yaml:"feed"`
	Destination string `yaml:"destination"`
	Owner       int64  `yaml:"owner"`
	Tags        string `yaml:"tags"`
}
