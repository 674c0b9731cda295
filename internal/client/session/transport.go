package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"watchsync/internal/core/domain"
)

// Conn is one open, message-framed connection to a room relay.
type Conn interface {
	WriteFrame(data []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// Transport opens connections. It is chosen once at startup.
type Transport interface {
	Name() string
	Dial(ctx context.Context) (Conn, error)
}

// RelayTransport dials the relay's websocket endpoint.
type RelayTransport struct {
	url          string
	writeTimeout time.Duration
	dialer       *websocket.Dialer
}

func NewRelayTransport(url string, writeTimeout time.Duration) *RelayTransport {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &RelayTransport{
		url:          url,
		writeTimeout: writeTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (t *RelayTransport) Name() string { return "relay" }

func (t *RelayTransport) Dial(ctx context.Context) (Conn, error) {
	ws, resp, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", t.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}
	return &wsConn{ws: ws, writeTimeout: t.writeTimeout}, nil
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func (c *wsConn) WriteFrame(data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout))
		err = c.ws.Close()
	})
	return err
}

// LocalOnlyTransport loops envelopes back to the session, as a room with a
// single member would.
type LocalOnlyTransport struct {
	now    func() time.Time
	buffer int
}

func NewLocalOnlyTransport() *LocalOnlyTransport {
	return &LocalOnlyTransport{now: time.Now, buffer: 64}
}

func (t *LocalOnlyTransport) Name() string { return "local" }

func (t *LocalOnlyTransport) Dial(context.Context) (Conn, error) {
	return &loopConn{
		now:    t.now,
		frames: make(chan []byte, t.buffer),
		closed: make(chan struct{}),
	}, nil
}

var errConnClosed = errors.New("connection closed")

type loopConn struct {
	now       func() time.Time
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	lastStamp int64
}

func (c *loopConn) WriteFrame(data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	env, err := domain.DecodeEnvelope(data)
	if err != nil {
		return nil
	}
	switch env.Kind {
	case domain.KindJoinRoom:
		env = &domain.Envelope{Kind: domain.KindUserJoined, RoomID: env.RoomID, DisplayName: env.DisplayName}
	case domain.KindLeaveRoom:
		env = &domain.Envelope{Kind: domain.KindUserLeft, RoomID: env.RoomID, DisplayName: env.DisplayName}
	}
	env.RoomID = env.RoomID.Normalize()
	env.Timestamp = c.stamp()

	out, err := env.Encode()
	if err != nil {
		return err
	}
	select {
	case c.frames <- out:
	default:
	}
	return nil
}

func (c *loopConn) stamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UnixMilli()
	if ts < c.lastStamp {
		ts = c.lastStamp
	}
	c.lastStamp = ts
	return ts
}

func (c *loopConn) ReadFrame() ([]byte, error) {
	select {
	case data := <-c.frames:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *loopConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// HealthProber reports whether the relay is reachable.
type HealthProber interface {
	Health(ctx context.Context) error
}

// SelectTransport probes the relay once and falls back to a local-only
// transport when it cannot be reached.
func SelectTransport(ctx context.Context, prober HealthProber, relayURL string, writeTimeout time.Duration, logger *zap.SugaredLogger) Transport {
	if err := prober.Health(ctx); err != nil {
		logger.Warnw("Relay unreachable, using local-only transport", "relay_url", relayURL, "error", err)
		return NewLocalOnlyTransport()
	}
	logger.Infow("Using relay transport", "relay_url", relayURL)
	return NewRelayTransport(relayURL, writeTimeout)
}
