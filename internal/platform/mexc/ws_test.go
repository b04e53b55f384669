package mexc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// wsTestServer accepts websocket upgrades, counts connections, and records
// the first command frame each connection sends.
type wsTestServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu           sync.Mutex
	connCount    int
	firstCommand map[int]string

	// dropFirst makes the server close connection 1 after one read.
	dropFirst bool
}

func newWSTestServer(t *testing.T, dropFirst bool) *wsTestServer {
	t.Helper()
	ts := &wsTestServer{
		firstCommand: make(map[int]string),
		dropFirst:    dropFirst,
	}
	ts.srv = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *wsTestServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := ts.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ts.mu.Lock()
	ts.connCount++
	n := ts.connCount
	ts.mu.Unlock()

	_, msg, err := conn.ReadMessage()
	if err == nil {
		ts.mu.Lock()
		ts.firstCommand[n] = string(msg)
		ts.mu.Unlock()
	}

	if ts.dropFirst && n == 1 {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (ts *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *wsTestServer) connections() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.connCount
}

func (ts *wsTestServer) command(n int) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.firstCommand[n]
}

func TestReconnectReplacesDroppedConnectionOnce(t *testing.T) {
	ts := newWSTestServer(t, true)

	client := NewWSClient(ts.url())
	client.reconnectBase = 10 * time.Millisecond
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Subscribe(context.Background(), []string{"BTCUSDT"}))

	// The server drops connection 1 after the subscribe; the client must
	// dial exactly one replacement.
	require.Eventually(t, func() bool {
		return ts.connections() == 2
	}, 5*time.Second, 10*time.Millisecond)

	// A correct client settles on the replacement instead of tearing it
	// down and redialing again.
	time.Sleep(250 * time.Millisecond)
	require.Equal(t, 2, ts.connections())
}

func TestReconnectRestoresSubscriptions(t *testing.T) {
	ts := newWSTestServer(t, true)

	client := NewWSClient(ts.url())
	client.reconnectBase = 10 * time.Millisecond
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Subscribe(context.Background(), []string{"BTCUSDT"}))

	require.Eventually(t, func() bool {
		return strings.Contains(ts.command(2), dealsChannel("BTCUSDT"))
	}, 5*time.Second, 10*time.Millisecond)

	require.Contains(t, ts.command(2), "SUBSCRIPTION")
}

func TestCloseStopsReconnecting(t *testing.T) {
	ts := newWSTestServer(t, false)

	client := NewWSClient(ts.url())
	client.reconnectBase = 10 * time.Millisecond

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Close())

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, ts.connections())
}
