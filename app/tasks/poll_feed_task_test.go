package tasks

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feedcourier/feedcourier/app/database"
	"github.com/feedcourier/feedcourier/app/feed"
)

const pollFixture = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Newest</title>
      <link>https://example.com/2</link>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Oldest</title>
      <link>https://example.com/1</link>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

type pollFixtureEnv struct {
	feedRepo *feedRepoMock
	subRepo  *subRepoMock
	ledger   *ledgerMock
	delivery *deliveryMock
	inflight *inflightSet
	parser   *feed.Parser
	feed     database.Feed
}

func newPollEnv(t *testing.T, body string, status int) *pollFixtureEnv {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	env := &pollFixtureEnv{
		feedRepo: newFeedRepoMock(),
		subRepo:  &subRepoMock{},
		ledger:   newLedgerMock(),
		delivery: &deliveryMock{},
		inflight: newInflightSet(),
		parser:   feed.NewParser(&http.Client{}, "Test/1.0", 5*time.Second),
		feed: database.Feed{
			ID:           "feed-1",
			URL:          server.URL,
			Name:         "Test Feed",
			PollInterval: time.Hour,
		},
	}
	env.feedRepo.feeds[env.feed.ID] = env.feed

	return env
}

func (e *pollFixtureEnv) newTask() *PollFeedTask {
	return NewPollFeedTask(e.feed, e.parser, e.feedRepo, e.subRepo, e.ledger, e.delivery, e.inflight)
}

func (e *pollFixtureEnv) subscribe(destID, tags string) {
	e.subRepo.subs = append(e.subRepo.subs, database.Subscription{
		DestinationID: destID,
		FeedID:        e.feed.ID,
		Tags:          tags,
	})
}

func TestPollFansOutToAllSubscriptions(t *testing.T) {
	env := newPollEnv(t, pollFixture, http.StatusOK)
	env.subscribe("dest-1", "#a")
	env.subscribe("dest-2", "#b")
	env.subscribe("dest-3", "")

	task := env.newTask()
	if err := task.Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// 2 items x 3 subscriptions.
	if len(env.delivery.tasks) != 6 {
		t.Fatalf("Expected 6 delivery tasks, got %d", len(env.delivery.tasks))
	}
	if task.enqueued != 6 {
		t.Errorf("Expected enqueued count 6, got %d", task.enqueued)
	}

	// Subscription tags travel into the tasks.
	tags := make(map[string]string)
	for _, dt := range env.delivery.tasks {
		tags[dt.DestinationID] = dt.Tags
	}
	if tags["dest-1"] != "#a" || tags["dest-2"] != "#b" || tags["dest-3"] != "" {
		t.Errorf("Unexpected tags per destination: %v", tags)
	}
}

func TestPollIngestsOldestFirst(t *testing.T) {
	env := newPollEnv(t, pollFixture, http.StatusOK)
	env.subscribe("dest-1", "")

	task := env.newTask()
	if err := task.Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(env.delivery.tasks) != 2 {
		t.Fatalf("Expected 2 delivery tasks, got %d", len(env.delivery.tasks))
	}
	// Sources list newest first; ingestion reverses.
	if env.delivery.tasks[0].GUID != "item-1" || env.delivery.tasks[1].GUID != "item-2" {
		t.Errorf("Expected oldest-first ingestion, got %s then %s",
			env.delivery.tasks[0].GUID, env.delivery.tasks[1].GUID)
	}
}

func TestPollIsIdempotent(t *testing.T) {
	env := newPollEnv(t, pollFixture, http.StatusOK)
	env.subscribe("dest-1", "")

	if err := env.newTask().Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	second := env.newTask()
	if err := second.Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if second.enqueued != 0 {
		t.Errorf("Expected repeat poll to enqueue nothing, got %d", second.enqueued)
	}
	if len(env.delivery.tasks) != 2 {
		t.Errorf("Expected 2 delivery tasks after repeat poll, got %d", len(env.delivery.tasks))
	}
}

func TestPollMarksSeenWithoutSubscriptions(t *testing.T) {
	env := newPollEnv(t, pollFixture, http.StatusOK)

	if err := env.newTask().Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(env.delivery.tasks) != 0 {
		t.Errorf("Expected no delivery tasks, got %d", len(env.delivery.tasks))
	}

	// The ledger still records the items: a subscription added later must
	// not trigger retroactive delivery.
	for _, guid := range []string{"item-1", "item-2"} {
		seen, _ := env.ledger.IsSeen(env.feed.ID, guid)
		if !seen {
			t.Errorf("Expected %s to be recorded as seen", guid)
		}
	}

	env.subscribe("dest-1", "")
	second := env.newTask()
	if err := second.Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if second.enqueued != 0 {
		t.Errorf("Expected no retroactive delivery, got %d tasks", second.enqueued)
	}
}

func TestPollDropsItemsWithoutIdentifier(t *testing.T) {
	fixture := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Unidentifiable</title>
    </item>
    <item>
      <title>Good</title>
      <guid>item-1</guid>
    </item>
  </channel>
</rss>`

	env := newPollEnv(t, fixture, http.StatusOK)
	env.subscribe("dest-1", "")

	task := env.newTask()
	if err := task.Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if task.enqueued != 1 {
		t.Errorf("Expected only the identifiable item enqueued, got %d", task.enqueued)
	}
}

func TestPollAppliesPublishDelay(t *testing.T) {
	env := newPollEnv(t, pollFixture, http.StatusOK)
	env.feed.PublishDelay = 10 * time.Minute
	env.subscribe("dest-1", "")

	before := time.Now().UTC()
	if err := env.newTask().Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	after := time.Now().UTC()

	for _, dt := range env.delivery.tasks {
		earliest := before.Add(10 * time.Minute)
		latest := after.Add(10 * time.Minute)
		if dt.ScheduledAt.Before(earliest) || dt.ScheduledAt.After(latest) {
			t.Errorf("Expected scheduled time ~now+10m, got %s", dt.ScheduledAt)
		}
	}
}

func TestPollFetchFailureAdvancesCadence(t *testing.T) {
	env := newPollEnv(t, "", http.StatusInternalServerError)
	env.subscribe("dest-1", "")

	task := env.newTask()
	// A broken source is not a task failure; it waits for the next interval.
	if err := task.Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if task.fetchError == nil {
		t.Error("Expected fetch error to be recorded")
	}
	if len(env.delivery.tasks) != 0 {
		t.Errorf("Expected no delivery tasks, got %d", len(env.delivery.tasks))
	}
	if _, ok := env.feedRepo.lastPolled[env.feed.ID]; !ok {
		t.Error("Expected last polled time to advance despite fetch failure")
	}
}

func TestPollSkipsWhenAlreadyInFlight(t *testing.T) {
	env := newPollEnv(t, pollFixture, http.StatusOK)
	env.subscribe("dest-1", "")

	env.inflight.TryAcquire(env.feed.ID)
	defer env.inflight.Release(env.feed.ID)

	task := env.newTask()
	if err := task.Execute(t.Context()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !task.skipped {
		t.Error("Expected task to be skipped")
	}
	if len(env.delivery.tasks) != 0 {
		t.Errorf("Expected no delivery tasks from skipped poll, got %d", len(env.delivery.tasks))
	}
}
