package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/feedcourier/feedcourier/app/cfg"
	"github.com/feedcourier/feedcourier/app/database"
	"github.com/feedcourier/feedcourier/app/feed"
	"github.com/feedcourier/feedcourier/app/sink"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs two independent periodic activities over one worker pool:
// a coarse feed-check tick that enqueues one PollFeedTask per due feed, and
// a fine publish tick that enqueues a single queue drain. The two coordinate
// only through storage.
type Scheduler struct {
	feedRepo    database.FeedRepository
	subRepo     database.SubscriptionRepository
	destRepo    database.DestinationRepository
	ledger      database.LedgerRepository
	delivery    database.DeliveryRepository
	parser      *feed.Parser
	snk         sink.Sink
	limiter     *rate.Limiter
	checkTick   time.Duration
	publishTick time.Duration
	batchLimit  int
	sendTimeout time.Duration
	workerCount int

	inflight     *inflightSet
	drainRunning atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(feedRepo database.FeedRepository, subRepo database.SubscriptionRepository,
	destRepo database.DestinationRepository, ledger database.LedgerRepository,
	delivery database.DeliveryRepository, parser *feed.Parser, snk sink.Sink) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	rps := c.PublishRate
	if rps <= 0 {
		rps = 5
	}

	return &Scheduler{
		feedRepo:    feedRepo,
		subRepo:     subRepo,
		destRepo:    destRepo,
		ledger:      ledger,
		delivery:    delivery,
		parser:      parser,
		snk:         snk,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		checkTick:   time.Duration(c.SchedulerTick) * time.Second,
		publishTick: time.Duration(c.PublisherTick) * time.Second,
		batchLimit:  c.PublishBatch,
		sendTimeout: time.Duration(c.SendTimeout) * time.Second,
		workerCount: c.WorkerCount,
		inflight:    newInflightSet(),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		checkTicker := time.NewTicker(s.checkTick)
		defer checkTicker.Stop()
		publishTicker := time.NewTicker(s.publishTick)
		defer publishTicker.Stop()

		s.enqueueDuePolls()
		s.enqueueDrain()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-checkTicker.C:
				s.enqueueDuePolls()
			case <-publishTicker.C:
				s.enqueueDrain()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// ForceCheck polls one feed (or all feeds when feedID is empty) through the
// regular ingestion path, bypassing the due-ness check. It runs synchronously
// and reports aggregate counts.
func (s *Scheduler) ForceCheck(feedID string) (CheckReport, error) {
	var feeds []database.Feed

	if feedID != "" {
		f, err := s.feedRepo.GetFeed(feedID)
		if err != nil {
			return CheckReport{}, err
		}
		if f == nil {
			return CheckReport{}, fmt.Errorf("feed %s not found", feedID)
		}
		feeds = []database.Feed{*f}
	} else {
		all, err := s.feedRepo.GetAllFeeds()
		if err != nil {
			return CheckReport{}, err
		}
		feeds = all
	}

	var report CheckReport
	for _, f := range feeds {
		task := s.newPollTask(f)
		task.Start()

		report.Attempted++
		err := task.Execute(s.ctx)
		switch {
		case task.skipped:
			// Poll already in flight; intentionally not counted as a failure.
			report.Attempted--
		case err != nil || task.fetchError != nil:
			report.Failed++
		default:
			report.Succeeded++
			report.Enqueued += task.enqueued
		}
	}

	return report, nil
}

func (s *Scheduler) enqueueDuePolls() {
	now := time.Now().UTC()
	feeds, err := s.feedRepo.GetDueFeeds(now)
	if err != nil {
		slog.Error("Failed to load due feeds", "error", err)
		return
	}
	if len(feeds) == 0 {
		slog.Debug("No feeds due for polling")
		return
	}

	slog.Debug("Enqueueing poll tasks", "count", len(feeds))
	for _, f := range feeds {
		if err := s.EnqueueTask(s.newPollTask(f)); err != nil {
			slog.Warn("Failed to enqueue PollFeedTask", "feed", f.ID, "error", err)
		}
	}
}

func (s *Scheduler) enqueueDrain() {
	// At most one drain queued or running at a time; the queue is shared
	// state, not the drain itself.
	if !s.drainRunning.CompareAndSwap(false, true) {
		return
	}

	task := NewPublishDueTask(s.delivery, s.destRepo, s.snk, s.limiter,
		s.batchLimit, s.sendTimeout, &s.drainRunning)
	if err := s.EnqueueTask(task); err != nil {
		s.drainRunning.Store(false)
		slog.Warn("Failed to enqueue PublishDueTask", "error", err)
	}
}

func (s *Scheduler) newPollTask(f database.Feed) *PollFeedTask {
	return NewPollFeedTask(f, s.parser, s.feedRepo, s.subRepo, s.ledger, s.delivery, s.inflight)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
