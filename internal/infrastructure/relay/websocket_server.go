package relay

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"watchsync/internal/infrastructure/monitoring"
)

type ServerConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string

	// Per-connection inbound limit; zero disables it.
	MessagesPerSecond float64
	Burst             int
}

// WebSocketServer upgrades HTTP requests and pumps frames between the socket
// and the hub.
type WebSocketServer struct {
	hub      *Hub
	cfg      ServerConfig
	upgrader websocket.Upgrader
	metrics  *monitoring.RelayCollector
	logger   *zap.SugaredLogger
}

func NewWebSocketServer(hub *Hub, cfg ServerConfig, metrics *monitoring.RelayCollector, logger *zap.SugaredLogger) *WebSocketServer {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	s := &WebSocketServer{
		hub:     hub,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && (origin == allowed || u.Host == allowed) {
			return true
		}
	}
	return false
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := NewClient(ConnID(uuid.NewString()), s.cfg.SendBuffer)
	if !s.hub.Register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"),
			time.Now().Add(s.cfg.WriteTimeout))
		conn.Close()
		return
	}
	s.logger.Infow("relay connection opened", "conn_id", client.ID, "remote_addr", r.RemoteAddr)

	go s.writePump(conn, client)
	s.readPump(conn, client)
}

func (s *WebSocketServer) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		s.hub.Unregister(client)
		conn.Close()
		s.logger.Infow("relay connection closed", "conn_id", client.ID)
	}()

	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst)
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Infow("relay read failed", "conn_id", client.ID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		if msgType != websocket.TextMessage {
			s.metrics.MalformedFrame()
			continue
		}
		if limiter != nil && !limiter.Allow() {
			s.metrics.RateLimitedFrame()
			continue
		}
		s.hub.Inbound(client, data)
	}
}

func (s *WebSocketServer) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debugw("relay write failed", "conn_id", client.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debugw("relay ping failed", "conn_id", client.ID, "error", err)
				return
			}
		}
	}
}
