package services

import (
	"context"

	"storefront-notify/internal/domain"
	"storefront-notify/internal/domain/repositories"
	"storefront-notify/pkg/logger"
)

type PurchaseService struct {
	itemRepo repositories.ItemRepository
	eventPub domain.EventPublisher
	log      logger.Logger
}

func NewPurchaseService(itemRepo repositories.ItemRepository, eventPub domain.EventPublisher,
	log logger.Logger) *PurchaseService {
	return &PurchaseService{
		itemRepo: itemRepo,
		eventPub: eventPub,
		log:      log,
	}
}

// Buy takes quantity units of the item for username and announces the
// purchase to managers. A failed announcement does not undo the purchase.
func (s *PurchaseService) Buy(ctx context.Context, username string, itemID int64, quantity int) (*domain.Item, error) {
	s.log.Info("Buying item", "username", username, "item_id", itemID, "quantity", quantity)

	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	item, err := s.itemRepo.Purchase(ctx, username, itemID, quantity)
	if err != nil {
		s.log.Warn("Purchase rejected", "username", username, "item_id", itemID, "error", err)
		return nil, err
	}

	event := &domain.PurchaseEvent{
		Username: username,
		Item:     item.Name,
		Quantity: quantity,
	}
	if err := s.eventPub.PublishPurchaseEvent(ctx, event); err != nil {
		s.log.Error("Failed to publish purchase event", "username", username, "item_id", itemID, "error", err)
	}

	s.log.Info("Item bought", "username", username, "item_id", itemID, "left", item.Quantity)
	return item, nil
}
