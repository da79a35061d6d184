package domain

import (
	"context"
)

// Notifier is the display sink for user visible notifications.
type Notifier interface {
	Notify(message string, severity Severity)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(message string, severity Severity)

func (f NotifierFunc) Notify(message string, severity Severity) { f(message, severity) }

// Channel is the client side notification channel as seen by the session layer.
type Channel interface {
	Connect()
	Disconnect()
	Connected() bool
}

// Event interfaces
type EventPublisher interface {
	PublishPurchaseEvent(ctx context.Context, event *PurchaseEvent) error
}

type EventSubscriber interface {
	SubscribeToPurchaseEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *PurchaseEvent) error

// Notification interfaces
type ManagerNotifier interface {
	NotifyManagersAboutBuying(ctx context.Context, username, item string, quantity int) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	ID() string
	Username() string
	Send(data []byte) error
	Ping() error
	Close() error
}

type ConnectionManager interface {
	RegisterConnection(conn WebSocketConnection) error
	UnregisterConnection(connID string) error
	Broadcast(message interface{}) error
	Connections() []WebSocketConnection
	Count() int
	CloseAll() error
}
