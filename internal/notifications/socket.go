package notifications

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// Conn is the read side of a websocket connection.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// Dialer opens websocket connections.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// GorillaDialer dials with github.com/gorilla/websocket.
type GorillaDialer struct {
	dialer    *websocket.Dialer
	readLimit int64
}

func NewGorillaDialer(handshakeTimeout time.Duration, readLimit int64) *GorillaDialer {
	return &GorillaDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		readLimit: readLimit,
	}
}

func (d *GorillaDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	if d.readLimit > 0 {
		conn.SetReadLimit(d.readLimit)
	}
	return &gorillaConn{Conn: conn}, nil
}

// gorillaConn says goodbye with a close frame before dropping the connection.
type gorillaConn struct {
	*websocket.Conn
}

func (c *gorillaConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return c.Conn.Close()
}

// HandshakeError is returned when the server rejects the upgrade.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Err.Error()
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// socket is one dial attempt and, once open, its connection. The manager
// holds at most one current socket.
type socket struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   Conn
	closed bool
}

func newSocket(parent context.Context, id uint64) *socket {
	ctx, cancel := context.WithCancel(parent)
	return &socket{id: id, ctx: ctx, cancel: cancel}
}

// attach stores the dialed connection. If the socket was already torn down
// while dialing, the connection is closed right away and false is returned.
func (s *socket) attach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		conn.Close()
		return false
	}
	s.conn = conn
	return true
}

// teardown detaches the socket from the manager and then closes the connection.
// Detaching first means no event from this socket reaches the manager afterwards.
func (s *socket) teardown() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *socket) detached() bool {
	return s.ctx.Err() != nil
}

// isCloseError reports whether err is a close frame from the peer, as opposed
// to a transport failure.
func isCloseError(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
