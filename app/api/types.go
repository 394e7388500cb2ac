package api

import (
	"github.com/feedcourier/feedcourier/app/database"
	"github.com/feedcourier/feedcourier/app/tasks"
)

type Handler struct {
	feedRepo     database.FeedRepository
	destRepo     database.DestinationRepository
	subRepo      database.SubscriptionRepository
	deliveryRepo database.DeliveryRepository
	scheduler    tasks.TaskSchedulerInterface
}
