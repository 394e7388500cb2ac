package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, owner, url, name, poll_interval_secs, publish_delay_secs, last_polled_at, created_at, updated_at`

func (r *feedRepository) GetFeed(id string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	return scanFeed(row)
}

func (r *feedRepository) GetFeedByURL(owner int64, url string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE owner = ? AND url = ?`, owner, url)
	return scanFeed(row)
}

func (r *feedRepository) GetAllFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`SELECT ` + feedColumns + ` FROM feeds ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// GetDueFeeds returns feeds whose poll interval has elapsed (or that have
// never been polled), oldest-poll first.
func (r *feedRepository) GetDueFeeds(now time.Time) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE last_polled_at IS NULL
		   OR last_polled_at + poll_interval_secs * 1000 <= ?
		ORDER BY COALESCE(last_polled_at, 0)
	`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to get due feeds: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

func (r *feedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// UpsertFeed inserts the feed or, when (owner, url) already exists, updates
// its name and intervals. Returns the row id.
func (r *feedRepository) UpsertFeed(feed Feed) (string, error) {
	if feed.ID == "" {
		feed.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO feeds (id, owner, url, name, poll_interval_secs, publish_delay_secs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, url) DO UPDATE SET
			name = excluded.name,
			poll_interval_secs = excluded.poll_interval_secs,
			publish_delay_secs = excluded.publish_delay_secs,
			updated_at = excluded.updated_at
	`, feed.ID, feed.Owner, feed.URL, feed.Name,
		int64(feed.PollInterval.Seconds()), int64(feed.PublishDelay.Seconds()),
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to upsert feed: %w", err)
	}

	var id string
	err = r.db.QueryRow(`SELECT id FROM feeds WHERE owner = ? AND url = ?`, feed.Owner, feed.URL).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve feed id: %w", err)
	}
	return id, nil
}

func (r *feedRepository) UpdateLastPolled(id string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds SET last_polled_at = ?, updated_at = ? WHERE id = ?
	`, at.UnixMilli(), time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update last polled time: %w", err)
	}
	return nil
}

func (r *feedRepository) SetPublishDelay(id string, delay time.Duration) error {
	res, err := r.db.Exec(`
		UPDATE feeds SET publish_delay_secs = ?, updated_at = ? WHERE id = ?
	`, int64(delay.Seconds()), time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to set publish delay: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("feed %s not found", id)
	}
	return nil
}

func (r *feedRepository) DeleteFeed(id string) error {
	_, err := r.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedInto(s rowScanner) (Feed, error) {
	var feed Feed
	var pollSecs, delaySecs, createdMS, updatedMS int64
	var lastPolledMS sql.NullInt64

	err := s.Scan(&feed.ID, &feed.Owner, &feed.URL, &feed.Name,
		&pollSecs, &delaySecs, &lastPolledMS, &createdMS, &updatedMS)
	if err != nil {
		return Feed{}, err
	}

	feed.PollInterval = time.Duration(pollSecs) * time.Second
	feed.PublishDelay = time.Duration(delaySecs) * time.Second
	feed.CreatedAt = time.UnixMilli(createdMS).UTC()
	feed.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	if lastPolledMS.Valid {
		t := time.UnixMilli(lastPolledMS.Int64).UTC()
		feed.LastPolledAt = &t
	}
	return feed, nil
}

func scanFeed(row *sql.Row) (*Feed, error) {
	feed, err := scanFeedInto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed: %w", err)
	}
	return &feed, nil
}

func collectFeeds(rows *sql.Rows) ([]Feed, error) {
	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeedInto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}
	return feeds, nil
}
