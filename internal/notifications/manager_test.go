package notifications

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"storefront-notify/internal/domain"
	"storefront-notify/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type frame struct {
	messageType int
	data        []byte
	err         error
}

type fakeConn struct {
	frames chan frame
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan frame, 128), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return f.messageType, f.data, f.err
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sendText(s string) {
	c.frames <- frame{messageType: websocket.TextMessage, data: []byte(s)}
}

type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	headers []http.Header
	err     error
	// called with the conns dialed so far, before a new one is created
	onDial func(previous []*fakeConn)
}

func (d *fakeDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.onDial != nil {
		d.onDial(d.conns)
	}
	d.headers = append(d.headers, header)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialed() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

func (d *fakeDialer) last() *fakeConn {
	conns := d.dialed()
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

type note struct {
	message  string
	severity domain.Severity
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *recordingNotifier) Notify(message string, severity domain.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{message, severity})
}

func (n *recordingNotifier) all() []note {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]note(nil), n.notes...)
}

func (n *recordingNotifier) count(message string) int {
	c := 0
	for _, nt := range n.all() {
		if nt.message == message {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) lastMessage() string {
	notes := n.all()
	if len(notes) == 0 {
		return ""
	}
	return notes[len(notes)-1].message
}

func startManager(t *testing.T, dialer Dialer, opts ...Option) (*Manager, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	m := NewManager("ws://hub.test/ws", dialer, notifier, logger.NewNop(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	return m, notifier
}

func connectAndWait(t *testing.T, m *Manager) {
	t.Helper()
	m.Connect()
	require.Eventually(t, m.Connected, waitFor, tick)
}

func TestConnectReportsConnected(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)

	assert.False(t, m.Connected())
	connectAndWait(t, m)

	assert.Equal(t, domain.Connected, m.Status())
	assert.Equal(t, []note{{MessageConnected, domain.SeveritySuccess}}, notifier.all())
	assert.Len(t, dialer.dialed(), 1)
}

func TestBearerTokenIsSentOnHandshake(t *testing.T) {
	dialer := &fakeDialer{}
	m, _ := startManager(t, dialer, WithBearerToken("secret"))
	connectAndWait(t, m)

	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	require.Len(t, dialer.headers, 1)
	assert.Equal(t, "Bearer secret", dialer.headers[0].Get("Authorization"))
}

func TestPurchaseFrameProducesOneInfoNotification(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)
	connectAndWait(t, m)

	dialer.last().sendText(`{"username":"alice","item":"Widget","quantity":3}`)

	want := "User alice purchased Widget in quantity 3 pcs."
	require.Eventually(t, func() bool { return notifier.count(want) == 1 }, waitFor, tick)
	assert.Equal(t, note{want, domain.SeverityInfo}, notifier.all()[1])
}

func TestConnectTwiceKeepsOneLiveSocket(t *testing.T) {
	var mu sync.Mutex
	var leaked []int
	dialer := &fakeDialer{}
	dialer.onDial = func(previous []*fakeConn) {
		mu.Lock()
		defer mu.Unlock()
		for i, c := range previous {
			if !c.isClosed() {
				leaked = append(leaked, i)
			}
		}
	}
	m, _ := startManager(t, dialer)

	connectAndWait(t, m)
	first := dialer.last()

	m.Connect()
	require.Eventually(t, func() bool { return len(dialer.dialed()) == 2 && m.Connected() }, waitFor, tick)

	assert.True(t, first.isClosed())
	assert.False(t, dialer.last().isClosed())
	mu.Lock()
	assert.Empty(t, leaked, "previous socket was still open when a new one was dialed")
	mu.Unlock()
}

func TestStaleSocketEventsAreIgnored(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)

	connectAndWait(t, m)
	first := dialer.last()
	m.Connect()
	require.Eventually(t, func() bool { return len(dialer.dialed()) == 2 && m.Connected() }, waitFor, tick)

	// the first socket is closed; anything it would still report must not count
	first.frames <- frame{err: &websocket.CloseError{Code: websocket.CloseNormalClosure}}
	time.Sleep(20 * time.Millisecond)

	assert.True(t, m.Connected())
	assert.Zero(t, notifier.count(MessageDisconnected))
}

func TestConnectConnectDisconnectLeavesNothingOpen(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)

	m.Connect()
	m.Connect()
	m.Disconnect()

	require.Eventually(t, func() bool { return notifier.lastMessage() == MessageClosed }, waitFor, tick)
	require.Eventually(t, func() bool {
		for _, c := range dialer.dialed() {
			if !c.isClosed() {
				return false
			}
		}
		return true
	}, waitFor, tick)
	assert.False(t, m.Connected())
}

func TestDisconnectWhileDisconnected(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)

	m.Disconnect()

	require.Eventually(t, func() bool { return len(notifier.all()) == 1 }, waitFor, tick)
	assert.Equal(t, note{MessageClosed, domain.SeverityInfo}, notifier.all()[0])
	assert.False(t, m.Connected())
	assert.Empty(t, dialer.dialed())
}

func TestDisconnectClosesLiveSocket(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)
	connectAndWait(t, m)

	m.Disconnect()

	require.Eventually(t, func() bool { return dialer.last().isClosed() }, waitFor, tick)
	assert.False(t, m.Connected())
	require.Eventually(t, func() bool { return notifier.lastMessage() == MessageClosed }, waitFor, tick)
	assert.Zero(t, notifier.count(MessageDisconnected))
}

func TestServerCloseReportsDisconnected(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)
	connectAndWait(t, m)

	conn := dialer.last()
	conn.frames <- frame{err: &websocket.CloseError{Code: websocket.CloseGoingAway, Text: "bye"}}

	require.Eventually(t, func() bool { return !m.Connected() }, waitFor, tick)
	require.Eventually(t, func() bool { return notifier.count(MessageDisconnected) == 1 }, waitFor, tick)
	assert.Equal(t, domain.SeverityWarning, notifier.all()[1].severity)
	assert.True(t, conn.isClosed())
}

func TestTransportErrorTearsDown(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)
	connectAndWait(t, m)

	conn := dialer.last()
	conn.frames <- frame{err: errors.New("connection reset by peer")}

	want := note{"WebSocket error: connection reset by peer", domain.SeverityError}
	require.Eventually(t, func() bool { return notifier.lastMessage() == want.message }, waitFor, tick)
	assert.Equal(t, want, notifier.all()[1])
	assert.False(t, m.Connected())
	assert.True(t, conn.isClosed())
	assert.Zero(t, notifier.count(MessageDisconnected))
}

func TestDialFailureIsReported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"with message", errors.New("connection refused"), "WebSocket error: connection refused"},
		{"without message", errors.New(""), "WebSocket error: Unknown error"},
		{"handshake rejected", &HandshakeError{StatusCode: http.StatusForbidden, Err: websocket.ErrBadHandshake},
			"WebSocket error: Forbidden: websocket: bad handshake"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &fakeDialer{err: tt.err}
			m, notifier := startManager(t, dialer)

			m.Connect()

			require.Eventually(t, func() bool { return len(notifier.all()) == 1 }, waitFor, tick)
			assert.Equal(t, note{tt.want, domain.SeverityError}, notifier.all()[0])
			assert.False(t, m.Connected())
		})
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	dialer := &fakeDialer{}
	m, notifier := startManager(t, dialer)
	connectAndWait(t, m)

	conn := dialer.last()
	conn.sendText(`not json`)
	conn.sendText(`{"username":"bob","item":"Lamp","quantity":0}`)
	conn.sendText(`{"item":"Lamp","quantity":2}`)
	conn.sendText(`{"username":"bob","item":"Lamp","quantity":1.5}`)
	conn.frames <- frame{messageType: websocket.BinaryMessage, data: []byte(`{"username":"bob","item":"Lamp","quantity":1}`)}
	conn.sendText(`{"username":"bob","item":"Lamp","quantity":1}`)

	want := "User bob purchased Lamp in quantity 1 pcs."
	require.Eventually(t, func() bool { return notifier.count(want) == 1 }, waitFor, tick)
	assert.Len(t, notifier.all(), 2)
	assert.True(t, m.Connected())
}

func TestFramesAreDeliveredInOrder(t *testing.T) {
	const total = 100

	var mu sync.Mutex
	var got []domain.PurchaseEvent
	dialer := &fakeDialer{}
	m, _ := startManager(t, dialer, WithPurchaseHandler(func(e domain.PurchaseEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	}))
	connectAndWait(t, m)

	conn := dialer.last()
	for i := 1; i <= total; i++ {
		conn.sendText(fmt.Sprintf(`{"username":"u%d","item":"item","quantity":%d}`, i, i))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == total
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	for i, e := range got {
		assert.Equal(t, i+1, e.Quantity)
		assert.Equal(t, fmt.Sprintf("u%d", i+1), e.Username)
	}
}

func TestRunReleasesSocketOnExit(t *testing.T) {
	dialer := &fakeDialer{}
	notifier := &recordingNotifier{}
	m := NewManager("ws://hub.test/ws", dialer, notifier, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	connectAndWait(t, m)

	cancel()
	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}

	assert.True(t, dialer.last().isClosed())
	assert.False(t, m.Connected())

	// commands after shutdown are dropped instead of blocking
	m.Connect()
	m.Disconnect()
}

func TestRunTwice(t *testing.T) {
	m, _ := startManager(t, &fakeDialer{})
	require.Eventually(t, m.running.Load, waitFor, tick)

	assert.ErrorIs(t, m.Run(context.Background()), ErrAlreadyRunning)
}

func TestCommandsDoNotBlockBeforeRun(t *testing.T) {
	dialer := &fakeDialer{}
	notifier := &recordingNotifier{}
	m := NewManager("ws://hub.test/ws", dialer, notifier, logger.NewNop())

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for i := 0; i < 40; i++ {
			m.Connect()
		}
		m.Disconnect()
	}()
	select {
	case <-returned:
	case <-time.After(waitFor):
		t.Fatal("Connect blocked while Run was not started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})

	// only the latest intent is carried out
	require.Eventually(t, func() bool { return notifier.count(MessageClosed) == 1 }, waitFor, tick)
	assert.Empty(t, dialer.dialed())
	assert.False(t, m.Connected())
}

type blockingNotifier struct {
	release chan struct{}
	once    sync.Once
	entered chan struct{}
}

func (n *blockingNotifier) Notify(message string, severity domain.Severity) {
	n.once.Do(func() { close(n.entered) })
	<-n.release
}

func TestCommandsDoNotBlockWhileNotifying(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{}), entered: make(chan struct{})}
	m := NewManager("ws://hub.test/ws", &fakeDialer{}, notifier, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(func() {
		close(notifier.release)
		cancel()
		<-m.Done()
	})

	m.Connect()
	select {
	case <-notifier.entered:
	case <-time.After(waitFor):
		t.Fatal("connected notification never arrived")
	}

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for i := 0; i < 40; i++ {
			m.Connect()
			m.Disconnect()
		}
	}()
	select {
	case <-returned:
	case <-time.After(waitFor):
		t.Fatal("Connect/Disconnect blocked while the loop was busy")
	}
}
