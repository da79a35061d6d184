package domain

import "errors"

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrMalformedEvent    = errors.New("malformed purchase event")
	ErrUnknownRole       = errors.New("unknown role")
)
