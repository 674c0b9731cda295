package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"watchsync/internal/core/domain"
	"watchsync/pkg/validation"
)

var (
	ErrSendQueueFull = errors.New("send queue full")
	ErrClosed        = errors.New("session closed")
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusReconnecting Status = "reconnecting"
)

// RoomChecker gates Connect on the room existing.
type RoomChecker interface {
	RoomExists(ctx context.Context, code domain.RoomCode) (bool, error)
}

// Handler receives every well-formed inbound envelope.
type Handler func(env *domain.Envelope)

type Options struct {
	Backoff      time.Duration
	SendQueue    int
	DialTimeout  time.Duration
	LeaveTimeout time.Duration
	Checker      RoomChecker

	// OnStatus is called with the controller locked; it must not call back
	// into the Controller.
	OnStatus func(Status)
}

// Controller keeps one logical connection per room visit. A dropped transport
// is redialled once after Backoff and the visit rejoins with the same room and
// name, which peers see as a fresh join.
type Controller struct {
	transport Transport
	opts      Options
	logger    *zap.SugaredLogger

	// ops serializes Connect and Leave.
	ops sync.Mutex

	mu         sync.Mutex
	handler    Handler
	active     bool
	closed     bool
	epoch      uint64
	room       domain.RoomCode
	name       string
	conn       Conn
	out        chan []byte
	writerDone chan struct{}
	timer      *time.Timer
	status     Status
}

func NewController(transport Transport, opts Options, logger *zap.SugaredLogger) *Controller {
	if opts.Backoff <= 0 {
		opts.Backoff = 5 * time.Second
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 64
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.LeaveTimeout <= 0 {
		opts.LeaveTimeout = 2 * time.Second
	}
	return &Controller{
		transport: transport,
		opts:      opts,
		logger:    logger,
		status:    StatusDisconnected,
	}
}

func (c *Controller) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Room() domain.RoomCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Connect starts a visit to room as displayName. Calling it again for the
// visit in progress is a no-op; calling it for another room leaves the current
// one first. A failed dial is retried by the reconnect policy, not reported.
func (c *Controller) Connect(ctx context.Context, room, displayName string) error {
	code := domain.NormalizeRoomCode(room)
	if !code.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRoomCode, room)
	}
	displayName = strings.TrimSpace(displayName)
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return err
	}

	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	same := c.active && c.room == code && c.name == displayName
	c.mu.Unlock()
	if same {
		return nil
	}

	c.leave()

	if c.opts.Checker != nil {
		exists, err := c.opts.Checker.RoomExists(ctx, code)
		if err != nil {
			return fmt.Errorf("check room %s: %w", code, err)
		}
		if !exists {
			return domain.ErrRoomNotFound
		}
	}

	c.mu.Lock()
	c.active = true
	c.epoch++
	epoch := c.epoch
	c.room = code
	c.name = displayName
	c.mu.Unlock()

	c.logger.Infow("Joining room", "room", code, "display_name", displayName, "transport", c.transport.Name())
	c.dial(ctx, epoch)
	return nil
}

// Leave sends leave_room and waits briefly for it to be written before the
// transport is closed. A dead transport is skipped.
func (c *Controller) Leave() {
	c.ops.Lock()
	defer c.ops.Unlock()
	c.leave()
}

// Close leaves the current room and refuses further connects.
func (c *Controller) Close() {
	c.ops.Lock()
	defer c.ops.Unlock()
	c.leave()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Publish queues env for the current connection. It never blocks.
func (c *Controller) Publish(env *domain.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return domain.ErrNotConnected
	}
	if env.RoomID == "" {
		env.RoomID = c.room
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Kind, err)
	}
	select {
	case c.out <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *Controller) leave() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	conn, out, done := c.conn, c.out, c.writerDone
	room, name := c.room, c.name
	c.conn, c.out, c.writerDone = nil, nil, nil
	if conn != nil {
		if frame, err := (&domain.Envelope{Kind: domain.KindLeaveRoom, RoomID: room, DisplayName: name}).Encode(); err == nil {
			c.queueLeave(out, frame, room)
		}
		close(out)
	}
	c.setStatus(StatusDisconnected)
	c.mu.Unlock()

	if conn == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(c.opts.LeaveTimeout):
		c.logger.Warnw("Timed out flushing leave_room", "room", room)
	}
	conn.Close()
	c.logger.Infow("Left room", "room", room, "display_name", name)
}

// queueLeave puts the leave frame on a full queue by evicting the oldest
// pending frame.
func (c *Controller) queueLeave(out chan []byte, frame []byte, room domain.RoomCode) {
	for attempt := 0; attempt < 2; attempt++ {
		select {
		case out <- frame:
			return
		default:
		}
		select {
		case <-out:
			c.logger.Warnw("Send queue full, evicted a frame for leave_room", "room", room)
		default:
		}
	}
	c.logger.Warnw("Dropping leave_room, send queue full", "room", room)
}

func (c *Controller) dial(ctx context.Context, epoch uint64) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	conn, err := c.transport.Dial(dctx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.closed {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warnw("Dial failed", "room", c.room, "error", err, "retry_in", c.opts.Backoff)
		c.setStatus(StatusDisconnected)
		c.scheduleReconnect(epoch)
		return
	}
	c.attach(conn)
}

// attach starts the pumps for conn and sends join_room. Callers hold mu.
func (c *Controller) attach(conn Conn) {
	out := make(chan []byte, c.opts.SendQueue)
	done := make(chan struct{})
	c.conn, c.out, c.writerDone = conn, out, done

	go c.writeLoop(conn, out, done)
	go c.readLoop(conn)

	join := &domain.Envelope{Kind: domain.KindJoinRoom, RoomID: c.room, DisplayName: c.name}
	if frame, err := join.Encode(); err == nil {
		out <- frame
	}
	c.setStatus(StatusConnected)
}

func (c *Controller) writeLoop(conn Conn, out <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for data := range out {
		if err := conn.WriteFrame(data); err != nil {
			c.dropped(conn, err)
			return
		}
	}
}

func (c *Controller) readLoop(conn Conn) {
	for {
		data, err := conn.ReadFrame()
		if err != nil {
			c.dropped(conn, err)
			return
		}

		env, err := domain.DecodeEnvelope(data)
		if err != nil {
			c.logger.Debugw("Dropping malformed frame", "error", err)
			continue
		}

		c.mu.Lock()
		current := c.conn == conn
		h := c.handler
		c.mu.Unlock()
		if !current {
			return
		}
		if h != nil {
			h(env)
		}
	}
}

// dropped tears down conn after a transport error and schedules the single
// reconnect attempt. Errors from connections already replaced are ignored.
func (c *Controller) dropped(conn Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.logger.Infow("Connection dropped", "room", c.room, "error", err, "retry_in", c.opts.Backoff)
	close(c.out)
	c.conn, c.out, c.writerDone = nil, nil, nil
	c.setStatus(StatusDisconnected)
	c.scheduleReconnect(c.epoch)
	c.mu.Unlock()

	conn.Close()
}

// scheduleReconnect arms one reconnect attempt. Callers hold mu.
func (c *Controller) scheduleReconnect(epoch uint64) {
	if c.closed || !c.active {
		return
	}
	c.timer = time.AfterFunc(c.opts.Backoff, func() { c.reconnect(epoch) })
}

func (c *Controller) reconnect(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.closed || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.setStatus(StatusReconnecting)
	c.mu.Unlock()

	c.logger.Infow("Reconnecting", "room", c.Room())
	c.dial(context.Background(), epoch)
}

// setStatus records and reports a status change. Callers hold mu.
func (c *Controller) setStatus(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}
