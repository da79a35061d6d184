package websocket

import (
	"net/http"
	"sync"
	"time"

	"storefront-notify/internal/auth"
	"storefront-notify/internal/domain"
	"storefront-notify/pkg/logger"
	"storefront-notify/pkg/utils"

	"github.com/gorilla/websocket"
)

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser origins on the allow list. An empty list allows all.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	if len(allowedOrigins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// Only managers and admins are told about purchases.
var notifiedRoles = []domain.Role{domain.RoleManager, domain.RoleAdmin}

type WebSocketHandler struct {
	tokens         *auth.TokenService
	connManager    domain.ConnectionManager
	upgrader       websocket.Upgrader
	writeTimeout   time.Duration
	maxMessageSize int64
	log            logger.Logger
}

func NewWebSocketHandler(tokens *auth.TokenService, connManager domain.ConnectionManager,
	writeTimeout time.Duration, maxMessageSize int64, allowedOrigins []string, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		tokens:         tokens,
		connManager:    connManager,
		upgrader:       websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		writeTimeout:   writeTimeout,
		maxMessageSize: maxMessageSize,
		log:            log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.Authorize(auth.BearerToken(r), notifiedRoles...)
	if err != nil {
		h.log.Info("Rejected connection", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, err.Error(), auth.StatusCode(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}
	if h.maxMessageSize > 0 {
		conn.SetReadLimit(h.maxMessageSize)
	}

	wsConn := NewWebSocketConnection(conn, claims.Username(), h.writeTimeout)

	// Register connection
	if err := h.connManager.RegisterConnection(wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		wsConn.Close()
		return
	}

	// Start message handling
	go h.handleMessages(wsConn)
}

// handleMessages drains inbound frames until the peer goes away. Clients do
// not send application messages; reading keeps control frames flowing.
func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		h.connManager.UnregisterConnection(conn.ID())
		conn.Close()
	}()

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Unexpected close", "conn_id", conn.ID(), "error", err)
			}
			return
		}
	}
}

type WebSocketConnection struct {
	conn         *websocket.Conn
	id           string
	username     string
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

func NewWebSocketConnection(conn *websocket.Conn, username string, writeTimeout time.Duration) *WebSocketConnection {
	return &WebSocketConnection{
		conn:         conn,
		id:           utils.GenerateID("conn"),
		username:     username,
		writeTimeout: writeTimeout,
	}
}

func (wsc *WebSocketConnection) Send(data []byte) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	wsc.setWriteDeadline()
	return wsc.conn.WriteMessage(websocket.TextMessage, data)
}

func (wsc *WebSocketConnection) Ping() error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsc.timeout()))
}

func (wsc *WebSocketConnection) Close() error {
	wsc.closeOnce.Do(func() {
		wsc.closeErr = wsc.conn.Close()
	})
	return wsc.closeErr
}

func (wsc *WebSocketConnection) ID() string {
	return wsc.id
}

func (wsc *WebSocketConnection) Username() string {
	return wsc.username
}

func (wsc *WebSocketConnection) setWriteDeadline() {
	wsc.conn.SetWriteDeadline(time.Now().Add(wsc.timeout()))
}

func (wsc *WebSocketConnection) timeout() time.Duration {
	if wsc.writeTimeout <= 0 {
		return 10 * time.Second
	}
	return wsc.writeTimeout
}
