package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/feedcourier/feedcourier/app/database"
	"github.com/feedcourier/feedcourier/app/sink"
)

// PublishDueTask drains due delivery tasks and dispatches them to the sink.
// Dispatch failures of either class are terminal for the task: the row stays
// in the queue as an audit record and is not re-driven.
type PublishDueTask struct {
	Task
	delivery    database.DeliveryRepository
	destRepo    database.DestinationRepository
	snk         sink.Sink
	limiter     *rate.Limiter
	batchLimit  int
	sendTimeout time.Duration
	running     *atomic.Bool
}

func NewPublishDueTask(delivery database.DeliveryRepository, destRepo database.DestinationRepository,
	snk sink.Sink, limiter *rate.Limiter, batchLimit int, sendTimeout time.Duration,
	running *atomic.Bool) *PublishDueTask {
	t := &PublishDueTask{
		Task:        NewTask(TaskTypePublishDue, ""),
		delivery:    delivery,
		destRepo:    destRepo,
		snk:         snk,
		limiter:     limiter,
		batchLimit:  batchLimit,
		sendTimeout: sendTimeout,
		running:     running,
	}
	// A failed drain is retried at the next publisher tick, not sooner.
	t.MaxRetries = 0
	return t
}

func (t *PublishDueTask) Execute(ctx context.Context) error {
	if t.running != nil {
		defer t.running.Store(false)
	}

	now := time.Now().UTC()
	due, err := t.delivery.GetDueTasks(now, t.batchLimit)
	if err != nil {
		return fmt.Errorf("failed to load due tasks: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	published := 0
	failed := 0

	for _, task := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dest, err := t.destRepo.GetDestination(task.DestinationID)
		if err != nil {
			// Storage hiccup: leave the task pending for the next drain.
			slog.Error("Failed to resolve destination", "task", task.ID, "destination", task.DestinationID, "error", err)
			continue
		}
		if dest == nil {
			// Destination deletion is terminal for its tasks.
			slog.Warn("Destination no longer exists, task failed", "task", task.ID, "destination", task.DestinationID)
			t.mark(task.ID, database.StatusFailed)
			failed++
			continue
		}

		message := sink.FormatMessage(task)

		// Pacing between dispatches; destination-side rate limits apply to
		// the bot as a whole, not per chat.
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}

		sendCtx, cancel := context.WithTimeout(ctx, t.sendTimeout)
		err = t.snk.Send(sendCtx, dest.ChatID, message)
		cancel()

		if err != nil {
			class := t.snk.Classify(err)
			slog.Error("Dispatch failed", "task", task.ID, "chat", dest.ChatID, "class", class.String(), "error", err)
			t.mark(task.ID, database.StatusFailed)
			failed++
			continue
		}

		t.mark(task.ID, database.StatusPublished)
		published++
	}

	slog.Info("Task completed",
		"type", "PublishDue",
		"duration", t.GetDuration(),
		"due", len(due),
		"published", published,
		"failed", failed)

	return nil
}

// mark persists a terminal status before the drain moves on, so a crash
// mid-batch leaves at most the in-flight task ambiguous.
func (t *PublishDueTask) mark(taskID, status string) {
	if err := t.delivery.MarkStatus(taskID, status); err != nil {
		slog.Error("Failed to update task status", "task", taskID, "status", status, "error", err)
	}
}
