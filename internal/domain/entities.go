package domain

import "fmt"

// PurchaseEvent is the payload pushed to privileged clients after a purchase.
// One event is one JSON text frame.
type PurchaseEvent struct {
	Username string `json:"username"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

func (e PurchaseEvent) Validate() error {
	if e.Username == "" || e.Item == "" {
		return fmt.Errorf("%w: username and item are required", ErrMalformedEvent)
	}
	if e.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrMalformedEvent, e.Quantity)
	}
	return nil
}

// Message renders the human readable notification text for the event.
func (e PurchaseEvent) Message() string {
	return fmt.Sprintf("User %s purchased %s in quantity %d pcs.", e.Username, e.Item, e.Quantity)
}

type Role string

const (
	RoleNone    Role = ""
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleNone, RoleUser, RoleManager, RoleAdmin:
		return r, nil
	default:
		return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Privileged reports whether sessions with this role receive purchase notifications.
func (r Role) Privileged() bool {
	return r == RoleManager || r == RoleAdmin
}

func (r Role) String() string {
	if r == RoleNone {
		return "anonymous"
	}
	return string(r)
}

type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connected
)

func (s ConnectionStatus) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

type Item struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
	BrandID     int64  `json:"brand_id"`
	CategoryID  int64  `json:"category_id"`
}
