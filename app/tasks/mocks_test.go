package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/feedcourier/feedcourier/app/database"
	"github.com/feedcourier/feedcourier/app/sink"
)

type feedRepoMock struct {
	feeds      map[string]database.Feed
	lastPolled map[string]time.Time
}

func newFeedRepoMock() *feedRepoMock {
	return &feedRepoMock{
		feeds:      make(map[string]database.Feed),
		lastPolled: make(map[string]time.Time),
	}
}

func (m *feedRepoMock) GetFeed(id string) (*database.Feed, error) {
	if f, ok := m.feeds[id]; ok {
		return &f, nil
	}
	return nil, nil
}

func (m *feedRepoMock) GetFeedByURL(owner int64, url string) (*database.Feed, error) {
	for _, f := range m.feeds {
		if f.Owner == owner && f.URL == url {
			return &f, nil
		}
	}
	return nil, nil
}

func (m *feedRepoMock) GetAllFeeds() ([]database.Feed, error) {
	feeds := make([]database.Feed, 0, len(m.feeds))
	for _, f := range m.feeds {
		feeds = append(feeds, f)
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].ID < feeds[j].ID })
	return feeds, nil
}

func (m *feedRepoMock) GetDueFeeds(now time.Time) ([]database.Feed, error) {
	return m.GetAllFeeds()
}

func (m *feedRepoMock) GetFeedCount() (int, error) {
	return len(m.feeds), nil
}

func (m *feedRepoMock) UpsertFeed(feed database.Feed) (string, error) {
	m.feeds[feed.ID] = feed
	return feed.ID, nil
}

func (m *feedRepoMock) UpdateLastPolled(id string, at time.Time) error {
	m.lastPolled[id] = at
	return nil
}

func (m *feedRepoMock) SetPublishDelay(id string, delay time.Duration) error {
	f, ok := m.feeds[id]
	if !ok {
		return fmt.Errorf("feed %s not found", id)
	}
	f.PublishDelay = delay
	m.feeds[id] = f
	return nil
}

func (m *feedRepoMock) DeleteFeed(id string) error {
	delete(m.feeds, id)
	return nil
}

type subRepoMock struct {
	subs []database.Subscription
}

func (m *subRepoMock) GetSubscriptionsForFeed(feedID string) ([]database.Subscription, error) {
	var out []database.Subscription
	for _, s := range m.subs {
		if s.FeedID == feedID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *subRepoMock) GetSubscriptionCount() (int, error) {
	return len(m.subs), nil
}

func (m *subRepoMock) UpsertSubscription(sub database.Subscription) error {
	m.subs = append(m.subs, sub)
	return nil
}

func (m *subRepoMock) DeleteSubscription(owner int64, destinationID, feedID string) error {
	return nil
}

type destRepoMock struct {
	dests map[string]database.Destination
}

func newDestRepoMock() *destRepoMock {
	return &destRepoMock{dests: make(map[string]database.Destination)}
}

func (m *destRepoMock) GetDestination(id string) (*database.Destination, error) {
	if d, ok := m.dests[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *destRepoMock) GetDestinationByChatID(owner int64, chatID string) (*database.Destination, error) {
	for _, d := range m.dests {
		if d.Owner == owner && d.ChatID == chatID {
			return &d, nil
		}
	}
	return nil, nil
}

func (m *destRepoMock) GetAllDestinations() ([]database.Destination, error) {
	var out []database.Destination
	for _, d := range m.dests {
		out = append(out, d)
	}
	return out, nil
}

func (m *destRepoMock) GetDestinationCount() (int, error) {
	return len(m.dests), nil
}

func (m *destRepoMock) UpsertDestination(dest database.Destination) (string, error) {
	m.dests[dest.ID] = dest
	return dest.ID, nil
}

func (m *destRepoMock) DeleteDestination(id string) error {
	delete(m.dests, id)
	return nil
}

type ledgerMock struct {
	seen map[string]bool
}

func newLedgerMock() *ledgerMock {
	return &ledgerMock{seen: make(map[string]bool)}
}

func (m *ledgerMock) key(feedID, guid string) string {
	return feedID + "\x00" + guid
}

func (m *ledgerMock) IsSeen(feedID, guid string) (bool, error) {
	return m.seen[m.key(feedID, guid)], nil
}

func (m *ledgerMock) MarkSeen(feedID, guid string) (bool, error) {
	k := m.key(feedID, guid)
	if m.seen[k] {
		return false, nil
	}
	m.seen[k] = true
	return true, nil
}

type deliveryMock struct {
	tasks []database.DeliveryTask
}

func (m *deliveryMock) dedupKey(t database.DeliveryTask) string {
	return fmt.Sprintf("%d|%s|%s|%s", t.Owner, t.FeedID, t.DestinationID, t.GUID)
}

func (m *deliveryMock) Enqueue(task database.DeliveryTask) (bool, error) {
	for _, existing := range m.tasks {
		if m.dedupKey(existing) == m.dedupKey(task) {
			return false, nil
		}
	}
	if task.ID == "" {
		task.ID = fmt.Sprintf("task-%d", len(m.tasks)+1)
	}
	if task.Status == "" {
		task.Status = database.StatusPending
	}
	m.tasks = append(m.tasks, task)
	return true, nil
}

func (m *deliveryMock) GetDueTasks(now time.Time, limit int) ([]database.DeliveryTask, error) {
	var due []database.DeliveryTask
	for _, t := range m.tasks {
		if t.Status == database.StatusPending && !t.ScheduledAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *deliveryMock) MarkStatus(taskID, status string) error {
	for i, t := range m.tasks {
		if t.ID == taskID {
			if t.Status != database.StatusPending {
				return fmt.Errorf("task %s is not pending", taskID)
			}
			m.tasks[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("task %s not found", taskID)
}

func (m *deliveryMock) StatusCounts() (map[string]int, error) {
	counts := make(map[string]int)
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

func (m *deliveryMock) byStatus(status string) []database.DeliveryTask {
	var out []database.DeliveryTask
	for _, t := range m.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

type sentMessage struct {
	chatID  string
	message string
}

type sinkMock struct {
	sent    []sentMessage
	failFor map[string]error
}

func newSinkMock() *sinkMock {
	return &sinkMock{failFor: make(map[string]error)}
}

func (m *sinkMock) Send(ctx context.Context, chatID string, message string) error {
	if err, ok := m.failFor[chatID]; ok {
		return err
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, message: message})
	return nil
}

func (m *sinkMock) Classify(err error) sink.ErrorClass {
	if err == nil {
		return sink.ErrClassNone
	}
	return sink.ErrClassPermanent
}
