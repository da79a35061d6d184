// Package notifications implements the client side of the purchase
// notification channel: one websocket to the hub, connect/disconnect
// commands, a connected flag and a display sink for decoded events.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"storefront-notify/internal/domain"
	"storefront-notify/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	MessageConnected    = "WebSocket connected"
	MessageDisconnected = "WebSocket disconnected"
	MessageClosed       = "Connection closed"
	messageErrorPrefix  = "WebSocket error: "
	messageUnknownError = "Unknown error"
)

var ErrAlreadyRunning = errors.New("notification channel is already running")

type command int

const (
	cmdConnect command = iota
	cmdDisconnect
)

func (c command) String() string {
	if c == cmdConnect {
		return "connect"
	}
	return "disconnect"
}

type eventKind int

const (
	evOpen eventKind = iota
	evMessage
	evClose
	evError
)

type socketEvent struct {
	socket      *socket
	kind        eventKind
	messageType int
	data        []byte
	err         error
}

type Option func(*Manager)

// WithBearerToken sends the token in the Authorization header of every handshake.
func WithBearerToken(token string) Option {
	return func(m *Manager) {
		if token != "" {
			m.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithPurchaseHandler registers a callback that receives every decoded event
// after it was shown, in receive order.
func WithPurchaseHandler(fn func(domain.PurchaseEvent)) Option {
	return func(m *Manager) {
		m.onPurchase = fn
	}
}

// Manager owns zero or one live socket. Commands and socket events are handled
// on the goroutine running Run; Connect and Disconnect only record the
// latest intent and never block.
type Manager struct {
	url        string
	header     http.Header
	dialer     Dialer
	notifier   domain.Notifier
	onPurchase func(domain.PurchaseEvent)
	log        logger.Logger

	pending   atomic.Int32 // command+1, 0 when empty
	wake      chan struct{}
	inbox     chan socketEvent
	done      chan struct{}
	running   atomic.Bool
	connected atomic.Bool

	// owned by the Run goroutine
	current *socket
	nextID  uint64
}

func NewManager(url string, dialer Dialer, notifier domain.Notifier, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		url:      url,
		header:   http.Header{},
		dialer:   dialer,
		notifier: notifier,
		log:      log,
		wake:     make(chan struct{}, 1),
		inbox:    make(chan socketEvent, 64),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect replaces any existing socket with a new one. It never fails;
// outcomes are reported through the notifier.
func (m *Manager) Connect() {
	m.send(cmdConnect)
}

// Disconnect closes the current socket, if any, and reports "Connection closed".
func (m *Manager) Disconnect() {
	m.send(cmdDisconnect)
}

func (m *Manager) Connected() bool {
	return m.connected.Load()
}

func (m *Manager) Status() domain.ConnectionStatus {
	if m.Connected() {
		return domain.Connected
	}
	return domain.Disconnected
}

// Done is closed once Run has returned and the socket has been released.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// send stores cmd as the pending intent and wakes the loop. A command the
// loop has not picked up yet is superseded.
func (m *Manager) send(cmd command) {
	select {
	case <-m.done:
		m.log.Warn("Notification channel stopped, dropping command", "command", cmd.String())
		return
	default:
	}

	if prev := m.pending.Swap(int32(cmd) + 1); prev != 0 {
		m.log.Debug("Superseding pending command", "previous", command(prev-1).String(), "command", cmd.String())
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Run processes commands and socket events until ctx is cancelled. The live
// socket is always torn down before Run returns.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(m.done)
	defer m.teardown()

	m.log.Info("Notification channel started", "url", m.url)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("Notification channel stopped")
			return nil
		case <-m.wake:
			if p := m.pending.Swap(0); p != 0 {
				m.handleCommand(ctx, command(p-1))
			}
		case ev := <-m.inbox:
			m.handleSocketEvent(ev)
		}
	}
}

func (m *Manager) handleCommand(ctx context.Context, cmd command) {
	m.log.Debug("Handling command", "command", cmd.String())
	switch cmd {
	case cmdConnect:
		m.teardown()
		m.open(ctx)
	case cmdDisconnect:
		m.teardown()
		m.notifier.Notify(MessageClosed, domain.SeverityInfo)
	}
}

// teardown detaches and closes the current socket, then clears it.
func (m *Manager) teardown() {
	if s := m.current; s != nil {
		if err := s.teardown(); err != nil {
			m.log.Debug("Failed to close socket", "socket", s.id, "error", err)
		}
		m.current = nil
	}
	m.connected.Store(false)
}

func (m *Manager) open(ctx context.Context) {
	m.nextID++
	s := newSocket(ctx, m.nextID)
	m.current = s
	m.log.Info("Opening notification socket", "socket", s.id, "url", m.url)
	go m.runSocket(s)
}

func (m *Manager) runSocket(s *socket) {
	conn, err := m.dialer.DialContext(s.ctx, m.url, m.header.Clone())
	if err != nil {
		m.post(s, socketEvent{kind: evError, err: err})
		return
	}
	if !s.attach(conn) {
		return
	}
	m.post(s, socketEvent{kind: evOpen})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if isCloseError(err) {
				m.post(s, socketEvent{kind: evClose, err: err})
			} else {
				m.post(s, socketEvent{kind: evError, err: err})
			}
			return
		}
		m.post(s, socketEvent{kind: evMessage, messageType: messageType, data: data})
	}
}

// post hands an event to the Run loop unless the socket has been detached.
func (m *Manager) post(s *socket, ev socketEvent) {
	ev.socket = s
	select {
	case m.inbox <- ev:
	case <-s.ctx.Done():
	}
}

func (m *Manager) handleSocketEvent(ev socketEvent) {
	if ev.socket != m.current || ev.socket.detached() {
		m.log.Debug("Dropping event from detached socket", "socket", ev.socket.id)
		return
	}

	switch ev.kind {
	case evOpen:
		m.connected.Store(true)
		m.log.Info("Notification socket connected", "socket", ev.socket.id)
		m.notifier.Notify(MessageConnected, domain.SeveritySuccess)
	case evMessage:
		m.deliver(ev)
	case evClose:
		m.log.Info("Notification socket closed", "socket", ev.socket.id, "reason", ev.err)
		m.teardown()
		m.notifier.Notify(MessageDisconnected, domain.SeverityWarning)
	case evError:
		m.log.Error("Notification socket failed", "socket", ev.socket.id, "error", ev.err)
		m.notifier.Notify(errorMessage(ev.err), domain.SeverityError)
		m.teardown()
	}
}

// deliver decodes one frame. Malformed frames are logged and dropped.
func (m *Manager) deliver(ev socketEvent) {
	if ev.messageType != websocket.TextMessage {
		m.log.Warn("Dropping non-text frame", "socket", ev.socket.id, "message_type", ev.messageType)
		return
	}

	var event domain.PurchaseEvent
	if err := json.Unmarshal(ev.data, &event); err != nil {
		m.log.Warn("Dropping malformed purchase event", "payload", string(ev.data), "error", err)
		return
	}
	if err := event.Validate(); err != nil {
		m.log.Warn("Dropping invalid purchase event", "payload", string(ev.data), "error", err)
		return
	}

	m.notifier.Notify(event.Message(), domain.SeverityInfo)
	if m.onPurchase != nil {
		m.onPurchase(event)
	}
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return messageErrorPrefix + messageUnknownError
	}
	return messageErrorPrefix + err.Error()
}
