package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-notify/internal/domain"
	"storefront-notify/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestGorillaDialerEndToEnd(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer manager-token" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(domain.PurchaseEvent{Username: "alice", Item: "Widget", Quantity: 3})
		<-release
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
			time.Now().Add(time.Second))
		// wait for the client to answer the close frame
		conn.ReadMessage()
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	m := NewManager(wsURL(srv), NewGorillaDialer(time.Second, 1024), notifier, logger.NewNop(), WithBearerToken("manager-token"))
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-m.Done()
	}()
	go m.Run(ctx)

	connectAndWait(t, m)
	want := "User alice purchased Widget in quantity 3 pcs."
	require.Eventually(t, func() bool { return notifier.count(want) == 1 }, waitFor, tick)

	close(release)
	require.Eventually(t, func() bool { return notifier.count(MessageDisconnected) == 1 }, waitFor, tick)
	assert.False(t, m.Connected())
	assert.Equal(t, []note{
		{MessageConnected, domain.SeveritySuccess},
		{want, domain.SeverityInfo},
		{MessageDisconnected, domain.SeverityWarning},
	}, notifier.all())
}

func TestGorillaDialerRejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	m := NewManager(wsURL(srv), NewGorillaDialer(time.Second, 0), notifier, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-m.Done()
	}()
	go m.Run(ctx)

	m.Connect()

	require.Eventually(t, func() bool { return len(notifier.all()) == 1 }, waitFor, tick)
	got := notifier.all()[0]
	assert.Equal(t, domain.SeverityError, got.severity)
	assert.Contains(t, got.message, "WebSocket error: Forbidden")
	assert.False(t, m.Connected())
}
