package websocket

import (
	"context"

	"storefront-notify/internal/domain"
)

type PurchaseNotifier struct {
	connManager domain.ConnectionManager
}

func NewPurchaseNotifier(connManager domain.ConnectionManager) *PurchaseNotifier {
	return &PurchaseNotifier{connManager: connManager}
}

func (n *PurchaseNotifier) NotifyManagersAboutBuying(ctx context.Context, username, item string, quantity int) error {
	return n.connManager.Broadcast(domain.PurchaseEvent{
		Username: username,
		Item:     item,
		Quantity: quantity,
	})
}
