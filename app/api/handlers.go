package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedcourier/feedcourier/app/database"
	"github.com/feedcourier/feedcourier/app/tasks"
)

func NewHandler(feedRepo database.FeedRepository, destRepo database.DestinationRepository,
	subRepo database.SubscriptionRepository, deliveryRepo database.DeliveryRepository,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:     feedRepo,
		destRepo:     destRepo,
		subRepo:      subRepo,
		deliveryRepo: deliveryRepo,
		scheduler:    scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	if destCount, err := h.destRepo.GetDestinationCount(); err == nil {
		health["destinations"] = destCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds"] = feedCount
	}

	if destCount, err := h.destRepo.GetDestinationCount(); err == nil {
		stats["destinations"] = destCount
	}

	if subCount, err := h.subRepo.GetSubscriptionCount(); err == nil {
		stats["subscriptions"] = subCount
	}

	counts, err := h.deliveryRepo.StatusCounts()
	if err != nil {
		slog.Error("Database error", "operation", "status_counts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	stats["deliveries"] = map[string]int{
		"pending":   counts[database.StatusPending],
		"published": counts[database.StatusPublished],
		"failed":    counts[database.StatusFailed],
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	allFeeds, err := h.feedRepo.GetAllFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "get_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	feeds := make([]map[string]interface{}, 0, len(allFeeds))

	for _, feed := range allFeeds {
		feedInfo := map[string]interface{}{
			"id":            feed.ID,
			"url":           feed.URL,
			"name":          feed.Name,
			"poll_interval": feed.PollInterval.String(),
			"publish_delay": feed.PublishDelay.String(),
			"created_at":    feed.CreatedAt,
			"updated_at":    feed.UpdatedAt,
		}

		if feed.LastPolledAt != nil {
			feedInfo["last_polled_at"] = feed.LastPolledAt
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

// APICheckFeed triggers an immediate poll of a single feed, bypassing its
// interval, and reports what the poll did.
func (h *Handler) APICheckFeed(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed id parameter"})
		return
	}

	feed, err := h.feedRepo.GetFeed(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	report, err := h.scheduler.ForceCheck(feed.ID)
	if err != nil {
		slog.Error("Force check failed", "feed", feed.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Check failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"feed": gin.H{
			"id":   feed.ID,
			"name": feed.Name,
			"url":  feed.URL,
		},
		"report": report,
	})
}

// APICheckAll force-checks every registered feed sequentially.
func (h *Handler) APICheckAll(c *gin.Context) {
	allFeeds, err := h.feedRepo.GetAllFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "get_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	reports := make(map[string]tasks.CheckReport, len(allFeeds))

	for _, feed := range allFeeds {
		report, err := h.scheduler.ForceCheck(feed.ID)
		if err != nil {
			slog.Error("Force check failed", "feed", feed.ID, "error", err)
			continue
		}

		reports[feed.ID] = report
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"checked": len(reports),
		"total":   len(allFeeds),
		"reports": reports,
	})
}
