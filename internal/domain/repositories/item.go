package repositories

import (
	"context"

	"storefront-notify/internal/domain"
)

type ItemRepository interface {
	GetItem(ctx context.Context, itemID int64) (*domain.Item, error)
	// Purchase removes quantity units from stock, records the purchase and
	// returns the updated item. Both happen or neither does.
	Purchase(ctx context.Context, username string, itemID int64, quantity int) (*domain.Item, error)
}
