package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/limoo-im/limoo-go-driver/internal/auth"
	"github.com/limoo-im/limoo-go-driver/internal/connection"
	"github.com/limoo-im/limoo-go-driver/internal/model"
)

// authFailedThenCloseServer sends an event, an authentication_failed notice
// and a close frame on its first connection, then holds later ones open.
func authFailedThenCloseServer(t *testing.T) (*httptest.Server, func() int) {
	var (
		mu          sync.Mutex
		connections int
	)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		connections++
		n := connections
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if n == 1 {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"x","data":{"workspace_id":"W"}}`))
			conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"authentication_failed"}`))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "token revoked"))
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return server, func() int {
		mu.Lock()
		defer mu.Unlock()
		return connections
	}
}

func TestRouter_AuthenticationFailedBeforeCloseReconnectsOnce(t *testing.T) {
	server, connections := authFailedThenCloseServer(t)

	cfg := connection.DefaultManagerConfig()
	cfg.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	cfg.Policy.Increment = 10 * time.Millisecond
	cfg.OnFatal = func(err error) { t.Errorf("unexpected fatal: %v", err) }

	manager := connection.NewManager(cfg, auth.StaticToken("t"), nil)
	t.Cleanup(func() { manager.Close() })

	// The slow lookup keeps the notice queued until the close has already
	// been handled and a new connection installed.
	resolver := &mockResolver{}
	resolver.On("ResolveByID", mock.Anything, "W").
		After(200*time.Millisecond).
		Return(&model.Workspace{ID: "W"}, nil)

	dispatcher := &recordingDispatcher{}
	r := NewRouter(DefaultRouterConfig(), manager.Messages(), resolver, dispatcher, manager, nil)

	require.NoError(t, manager.Start(context.Background()))
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Stop(ctx)
	})

	require.Eventually(t, func() bool { return r.Stats().AuthFailures == 1 },
		2*time.Second, 5*time.Millisecond)

	// Give a wrongly accepted notice time to start a second cycle.
	time.Sleep(100 * time.Millisecond)

	stats := manager.Stats()
	assert.Equal(t, connection.StateConnected, stats.State)
	assert.Equal(t, int64(1), stats.Reconnects)
	assert.Equal(t, 2, stats.Epoch)
	assert.Equal(t, 2, connections())
	assert.Len(t, dispatcher.Events(), 1)
}
