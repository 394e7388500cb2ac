package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feedcourier/feedcourier/app/database"
)

const (
	defaultPollInterval = 3600
	defaultPublishDelay = 0
)

type Loader struct {
	feedRepository         database.FeedRepository
	destinationRepository  database.DestinationRepository
	subscriptionRepository database.SubscriptionRepository
}

func NewLoader(feedRepository database.FeedRepository, destinationRepository database.DestinationRepository,
	subscriptionRepository database.SubscriptionRepository) *Loader {
	return &Loader{
		feedRepository:         feedRepository,
		destinationRepository:  destinationRepository,
		subscriptionRepository: subscriptionRepository,
	}
}

// Run applies the bootstrap file at path. Entries are upserted, so running
// it again with the same file is a no-op.
func (l *Loader) Run(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bootstrap file: %w", err)
	}

	var file File

	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse bootstrap file: %w", err)
	}

	if err := l.apply(&file); err != nil {
		return err
	}

	slog.Info("Bootstrap completed", "feeds", len(file.Feeds),
		"destinations", len(file.Destinations), "subscriptions", len(file.Subscriptions))

	return nil
}

func (l *Loader) apply(file *File) error {
	for _, entry := range file.Feeds {
		if entry.URL == "" {
			return fmt.Errorf("bootstrap feed entry is missing url")
		}

		pollInterval := entry.PollInterval
		if pollInterval <= 0 {
			pollInterval = defaultPollInterval
		}

		publishDelay := entry.PublishDelay
		if publishDelay < 0 {
			publishDelay = defaultPublishDelay
		}

		feed := database.Feed{
			Owner:        entry.Owner,
			URL:          entry.URL,
			Name:         entry.Name,
			PollInterval: time.Duration(pollInterval) * time.Second,
			PublishDelay: time.Duration(publishDelay) * time.Second,
		}

		if _, err := l.feedRepository.UpsertFeed(feed); err != nil {
			return fmt.Errorf("failed to upsert feed %s: %w", entry.URL, err)
		}
	}

	for _, entry := range file.Destinations {
		if entry.ChatID == "" {
			return fmt.Errorf("bootstrap destination entry is missing chat_id")
		}

		destination := database.Destination{
			Owner:  entry.Owner,
			ChatID: entry.ChatID,
			Name:   entry.Name,
		}

		if _, err := l.destinationRepository.UpsertDestination(destination); err != nil {
			return fmt.Errorf("failed to upsert destination %s: %w", entry.ChatID, err)
		}
	}

	for _, entry := range file.Subscriptions {
		feed, err := l.feedRepository.GetFeedByURL(entry.Owner, entry.Feed)
		if err != nil {
			return fmt.Errorf("failed to resolve subscription feed %s: %w", entry.Feed, err)
		}

		if feed == nil {
			return fmt.Errorf("subscription references unknown feed %s", entry.Feed)
		}

		destination, err := l.destinationRepository.GetDestinationByChatID(entry.Owner, entry.Destination)
		if err != nil {
			return fmt.Errorf("failed to resolve subscription destination %s: %w", entry.Destination, err)
		}

		if destination == nil {
			return fmt.Errorf("subscription references unknown destination %s", entry.Destination)
		}

		subscription := database.Subscription{
			Owner:         entry.Owner,
			DestinationID: destination.ID,
			FeedID:        feed.ID,
			Tags:          FormatTags(entry.Tags),
		}

		if err := l.subscriptionRepository.UpsertSubscription(subscription); err != nil {
			return fmt.Errorf("failed to upsert subscription %s -> %s: %w", entry.Feed, entry.Destination, err)
		}
	}

	return nil
}

// FormatTags normalizes a whitespace separated tag list into hashtag form:
// "news tech" and "#news #tech" both become "#news #tech".
func FormatTags(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}

	tags := make([]string, 0, len(fields))

	for _, field := range fields {
		tags = append(tags, "#"+strings.TrimPrefix(field, "#"))
	}

	return strings.Join(tags, " ")
}
