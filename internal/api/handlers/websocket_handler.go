package handlers

import (
	"net/http"

	"storefront-notify/internal/auth"
	"storefront-notify/internal/config"
	"storefront-notify/internal/infrastructure/websocket"
	"storefront-notify/pkg/logger"

	"github.com/gorilla/mux"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(tokens *auth.TokenService, connManager *websocket.ConnectionManager,
	cfg config.HubConfig, log logger.Logger) *WebSocketHandlers {
	wsHandler := websocket.NewWebSocketHandler(tokens, connManager, cfg.WriteTimeout, cfg.MaxMessageSize,
		cfg.AllowedOrigins, log)
	return &WebSocketHandlers{
		wsHandler: wsHandler,
	}
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}

// Register mounts the notification endpoint on the router.
func (h *WebSocketHandlers) Register(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleConnection)
}
