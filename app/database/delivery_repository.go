package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type deliveryRepository struct {
	db *DB
}

func NewDeliveryRepository(db *DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) Enqueue(task DeliveryTask) (bool, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = StatusPending
	}

	res, err := r.db.Exec(`
		INSERT INTO delivery_tasks (id, owner, feed_id, destination_id, guid, scheduled_at, status, title, link, summary, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, feed_id, destination_id, guid) DO NOTHING
	`, task.ID, task.Owner, task.FeedID, task.DestinationID, capGUID(task.GUID),
		task.ScheduledAt.UnixMilli(), task.Status,
		task.Title, task.Link, task.Summary, task.Tags,
		time.Now().UTC().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to enqueue delivery task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read enqueue result: %w", err)
	}
	return n > 0, nil
}

// GetDueTasks returns pending tasks whose scheduled time has arrived,
// earliest first, so a backlog drains oldest-first.
func (r *deliveryRepository) GetDueTasks(now time.Time, limit int) ([]DeliveryTask, error) {
	rows, err := r.db.Query(`
		SELECT id, owner, feed_id, destination_id, guid, scheduled_at, status, title, link, summary, tags, created_at
		FROM delivery_tasks
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at
		LIMIT ?
	`, StatusPending, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []DeliveryTask
	for rows.Next() {
		var task DeliveryTask
		var scheduledMS, createdMS int64
		err := rows.Scan(&task.ID, &task.Owner, &task.FeedID, &task.DestinationID, &task.GUID,
			&scheduledMS, &task.Status, &task.Title, &task.Link, &task.Summary, &task.Tags, &createdMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery task row: %w", err)
		}
		task.ScheduledAt = time.UnixMilli(scheduledMS).UTC()
		task.CreatedAt = time.UnixMilli(createdMS).UTC()
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery task rows: %w", err)
	}
	return tasks, nil
}

// MarkStatus transitions a pending task to a terminal status. Terminal rows
// are never updated again.
func (r *deliveryRepository) MarkStatus(taskID, status string) error {
	res, err := r.db.Exec(`
		UPDATE delivery_tasks SET status = ? WHERE id = ? AND status = ?
	`, status, taskID, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s is not pending", taskID)
	}
	return nil
}

func (r *deliveryRepository) StatusCounts() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM delivery_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status count rows: %w", err)
	}
	return counts, nil
}
