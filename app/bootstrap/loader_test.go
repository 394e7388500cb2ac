package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/feedcourier/feedcourier/app/database"
)

func newTestLoader(t *testing.T) (*Loader, database.FeedRepository, database.SubscriptionRepository) {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	feedRepo := database.NewFeedRepository(db)
	destRepo := database.NewDestinationRepository(db)
	subRepo := database.NewSubscriptionRepository(db)

	return NewLoader(feedRepo, destRepo, subRepo), feedRepo, subRepo
}

func writeBootstrapFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bootstrap.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write bootstrap file: %v", err)
	}
	return path
}

const bootstrapFixture = `
feeds:
  - url: https://example.com/rss
    name: Example
    poll_interval: 1800
    publish_delay: 600
destinations:
  - chat_id: "-100123"
    name: Channel
subscriptions:
  - feed: https://example.com/rss
    destination: "-100123"
    tags: news tech
`

func TestRunRegistersEverything(t *testing.T) {
	loader, feedRepo, subRepo := newTestLoader(t)
	path := writeBootstrapFile(t, bootstrapFixture)

	if err := loader.Run(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	feed, err := feedRepo.GetFeedByURL(0, "https://example.com/rss")
	if err != nil {
		t.Fatalf("Failed to get feed: %v", err)
	}
	if feed == nil {
		t.Fatal("Expected registered feed, got nil")
	}
	if feed.PollInterval != 30*time.Minute {
		t.Errorf("Expected poll interval 30m, got %s", feed.PollInterval)
	}
	if feed.PublishDelay != 10*time.Minute {
		t.Errorf("Expected publish delay 10m, got %s", feed.PublishDelay)
	}

	subs, err := subRepo.GetSubscriptionsForFeed(feed.ID)
	if err != nil {
		t.Fatalf("Failed to get subscriptions: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("Expected 1 subscription, got %d", len(subs))
	}
	if subs[0].Tags != "#news #tech" {
		t.Errorf("Expected normalized tags '#news #tech', got %s", subs[0].Tags)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	loader, feedRepo, subRepo := newTestLoader(t)
	path := writeBootstrapFile(t, bootstrapFixture)

	if err := loader.Run(path); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if err := loader.Run(path); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	count, err := feedRepo.GetFeedCount()
	if err != nil {
		t.Fatalf("Failed to get feed count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 feed after repeat run, got %d", count)
	}

	subCount, err := subRepo.GetSubscriptionCount()
	if err != nil {
		t.Fatalf("Failed to get subscription count: %v", err)
	}
	if subCount != 1 {
		t.Errorf("Expected 1 subscription after repeat run, got %d", subCount)
	}
}

func TestRunRejectsUnknownSubscriptionTargets(t *testing.T) {
	loader, _, _ := newTestLoader(t)
	path := writeBootstrapFile(t, `
subscriptions:
  - feed: https://example.com/missing
    destination: "-100123"
`)

	if err := loader.Run(path); err == nil {
		t.Error("Expected error for subscription referencing unknown feed")
	}
}

func TestRunRejectsFeedWithoutURL(t *testing.T) {
	loader, _, _ := newTestLoader(t)
	path := writeBootstrapFile(t, `
feeds:
  - name: Nameless
`)

	if err := loader.Run(path); err == nil {
		t.Error("Expected error for feed entry without url")
	}
}

func TestFormatTags(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"news", "#news"},
		{"#news", "#news"},
		{"news tech", "#news #tech"},
		{"#news  #tech", "#news #tech"},
		{"  mixed #cases  ", "#mixed #cases"},
	}

	for _, c := range cases {
		if got := FormatTags(c.in); got != c.want {
			t.Errorf("FormatTags(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
