package services

import (
	"context"

	"storefront-notify/internal/domain"
	"storefront-notify/pkg/logger"
)

// EventListener forwards purchase events from the bus to connected managers.
type EventListener struct {
	notifier domain.ManagerNotifier
	log      logger.Logger
}

func NewEventListener(notifier domain.ManagerNotifier, log logger.Logger) *EventListener {
	return &EventListener{
		notifier: notifier,
		log:      log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToPurchaseEvents(ctx, func(event *domain.PurchaseEvent) error {
		return el.handlePurchaseEvent(ctx, event)
	})
}

func (el *EventListener) handlePurchaseEvent(ctx context.Context, event *domain.PurchaseEvent) error {
	el.log.Info("Handling purchase event", "username", event.Username, "item", event.Item,
		"quantity", event.Quantity)

	return el.notifier.NotifyManagersAboutBuying(ctx, event.Username, event.Item, event.Quantity)
}
