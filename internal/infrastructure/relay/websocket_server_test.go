package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchsync/internal/infrastructure/monitoring"
)

func newTestServer(t *testing.T, cfg ServerConfig) (*httptest.Server, *Hub) {
	t.Helper()
	metrics := monitoring.NewRelayCollector(prometheus.NewRegistry())
	logger := zap.NewNop().Sugar()

	hub := NewHub(HubConfig{AnnounceDisconnect: true}, metrics, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	if cfg.PingInterval == 0 {
		cfg.PingInterval = time.Second
	}
	if cfg.PongTimeout == 0 {
		cfg.PongTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = time.Second
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}
	ws := NewWebSocketServer(hub, cfg, metrics, logger)

	server := httptest.NewServer(http.HandlerFunc(ws.HandleWebSocket))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return server, hub
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestWebSocketServer_RelaysBetweenPeers(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{SendBuffer: 8})
	alice := dial(t, server)
	bob := dial(t, server)

	writeJSON(t, alice, map[string]string{"type": "join_room", "roomId": "ABC123", "displayName": "alice"})
	assert.Equal(t, "user_joined", readJSON(t, alice)["type"])

	writeJSON(t, bob, map[string]string{"type": "join_room", "roomId": "abc123", "displayName": "bob"})
	assert.Equal(t, "bob", readJSON(t, alice)["displayName"])
	assert.Equal(t, "bob", readJSON(t, bob)["displayName"])

	writeJSON(t, alice, map[string]interface{}{
		"type":        "video_state_changed",
		"roomId":      "ABC123",
		"displayName": "alice",
		"videoState":  map[string]interface{}{"action": "volume", "value": 42},
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readJSON(t, conn)
		assert.Equal(t, "video_state_changed", msg["type"])
		assert.Equal(t, map[string]interface{}{"action": "volume", "value": 42.0}, msg["videoState"])
	}
}

func TestWebSocketServer_AbruptCloseAnnouncesLeave(t *testing.T) {
	server, hub := newTestServer(t, ServerConfig{SendBuffer: 8})
	alice := dial(t, server)
	bob := dial(t, server)

	writeJSON(t, alice, map[string]string{"type": "join_room", "roomId": "ABC123", "displayName": "alice"})
	readJSON(t, alice)
	writeJSON(t, bob, map[string]string{"type": "join_room", "roomId": "ABC123", "displayName": "bob"})
	readJSON(t, alice)
	readJSON(t, bob)

	bob.Close()

	msg := readJSON(t, alice)
	assert.Equal(t, "user_left", msg["type"])
	assert.Equal(t, "bob", msg["displayName"])

	assert.Eventually(t, func() bool {
		conns, _ := hub.Stats()
		return conns == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocketServer_RateLimitDropsExcess(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{SendBuffer: 16, MessagesPerSecond: 0.001, Burst: 2})
	alice := dial(t, server)

	writeJSON(t, alice, map[string]string{"type": "join_room", "roomId": "ABC123", "displayName": "alice"})
	writeJSON(t, alice, map[string]string{"type": "chat", "roomId": "ABC123", "displayName": "alice", "text": "ok"})
	writeJSON(t, alice, map[string]string{"type": "chat", "roomId": "ABC123", "displayName": "alice", "text": "dropped"})

	assert.Equal(t, "user_joined", readJSON(t, alice)["type"])
	assert.Equal(t, "ok", readJSON(t, alice)["text"])

	alice.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := alice.ReadMessage()
	assert.Error(t, err)
}

func TestWebSocketServer_OversizedFrameClosesConnection(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{SendBuffer: 8, MaxMessageSize: 128})
	alice := dial(t, server)

	big := strings.Repeat("x", 512)
	writeJSON(t, alice, map[string]string{"type": "chat", "roomId": "ABC123", "displayName": "alice", "text": big})

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := alice.ReadMessage()
	assert.Error(t, err, "relay should drop a connection that exceeds the read limit")
}

func TestWebSocketServer_CheckOrigin(t *testing.T) {
	ws := NewWebSocketServer(nil, ServerConfig{AllowedOrigins: []string{"watch.example.com"}}, nil, zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, ws.checkOrigin(req), "no Origin header is allowed")

	req.Header.Set("Origin", "https://watch.example.com")
	assert.True(t, ws.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, ws.checkOrigin(req))
}
