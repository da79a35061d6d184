package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"storefront-notify/internal/auth"
	"storefront-notify/internal/domain"
	"storefront-notify/pkg/logger"

	"github.com/labstack/echo/v4"
)

type Buyer interface {
	Buy(ctx context.Context, username string, itemID int64, quantity int) (*domain.Item, error)
}

type PurchaseHandler struct {
	buyer Buyer
	log   logger.Logger
}

type BuyRequest struct {
	Quantity int `json:"quantity"`
}

func NewPurchaseHandler(buyer Buyer, log logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		buyer: buyer,
		log:   log,
	}
}

func (h *PurchaseHandler) BuyItem(c echo.Context) error {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": auth.ErrTokenInvalid.Error()})
	}

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found"})
	}

	var req BuyRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	item, err := h.buyer.Buy(c.Request().Context(), claims.Username(), itemID, req.Quantity)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, item)
	case errors.Is(err, domain.ErrInvalidQuantity):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Invalid item quantity"})
	case errors.Is(err, domain.ErrItemNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found"})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Not enough items in stock"})
	default:
		h.log.Error("Failed to buy item", "item_id", itemID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to buy item"})
	}
}

// Register mounts the purchase routes on g. Only shoppers may buy.
func (h *PurchaseHandler) Register(g *echo.Group, tokens *auth.TokenService) {
	g.PATCH("/buy/:id", h.BuyItem, auth.RequireRoles(tokens, domain.RoleUser))
}
