package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"watchsync/internal/core/domain"
	"watchsync/internal/infrastructure/monitoring"
	"watchsync/pkg/tracing"
)

// Client is the hub's view of one connection: an id and a buffered outbound
// queue drained by the transport's writer.
type Client struct {
	ID   ConnID
	send chan []byte
}

func NewClient(id ConnID, buffer int) *Client {
	return &Client{ID: id, send: make(chan []byte, buffer)}
}

// Send returns the outbound queue. It is closed when the hub drops the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventFrame
)

type hubEvent struct {
	kind   eventKind
	client *Client
	data   []byte
}

type HubConfig struct {
	// AnnounceDisconnect synthesizes user_left when a tagged connection
	// closes without sending leave_room.
	AnnounceDisconnect bool
	EventBuffer        int
	Now                func() time.Time
}

// Hub routes envelopes between connections. All registry access happens on
// the goroutine running Run; other goroutines talk to it over channels.
type Hub struct {
	cfg      HubConfig
	registry *Registry
	clients  map[ConnID]*Client
	// last timestamp handed out per room
	lastStamp map[domain.RoomCode]int64

	events  chan hubEvent
	queries chan func()
	done    chan struct{}

	metrics *monitoring.RelayCollector
	logger  *zap.SugaredLogger
}

func NewHub(cfg HubConfig, metrics *monitoring.RelayCollector, logger *zap.SugaredLogger) *Hub {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Hub{
		cfg:       cfg,
		registry:  NewRegistry(),
		clients:   make(map[ConnID]*Client),
		lastStamp: make(map[domain.RoomCode]int64),
		events:    make(chan hubEvent, cfg.EventBuffer),
		queries:   make(chan func()),
		done:      make(chan struct{}),
		metrics:   metrics,
		logger:    logger,
	}
}

// Run dispatches events until ctx is cancelled, then closes every client queue.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for id, c := range h.clients {
			close(c.send)
			delete(h.clients, id)
		}
		// clients whose registration was still queued
		for {
			select {
			case ev := <-h.events:
				if ev.kind == eventRegister {
					close(ev.client.send)
				}
			default:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			switch ev.kind {
			case eventRegister:
				h.register(ev.client)
			case eventUnregister:
				h.unregister(ev.client)
			case eventFrame:
				h.route(ev.client, ev.data)
			}
		case q := <-h.queries:
			q()
		}
	}
}

func (h *Hub) submit(ev hubEvent) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	}
}

// Register adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	return h.submit(hubEvent{kind: eventRegister, client: c})
}

func (h *Hub) Unregister(c *Client) {
	h.submit(hubEvent{kind: eventUnregister, client: c})
}

// Inbound queues one raw frame from c. Frames from one client are routed in
// the order they were queued.
func (h *Hub) Inbound(c *Client, data []byte) {
	h.submit(hubEvent{kind: eventFrame, client: c, data: data})
}

func (h *Hub) query(fn func()) bool {
	wait := make(chan struct{})
	select {
	case h.queries <- func() { fn(); close(wait) }:
		<-wait
		return true
	case <-h.done:
		return false
	}
}

// Stats reports open connections and occupied rooms.
func (h *Hub) Stats() (connections, rooms int) {
	h.query(func() {
		connections = len(h.clients)
		rooms = h.registry.RoomCount()
	})
	return connections, rooms
}

// MembersOf snapshots the connections tagged with room.
func (h *Hub) MembersOf(room domain.RoomCode) []ConnID {
	var members []ConnID
	h.query(func() { members = h.registry.MembersOf(room) })
	return members
}

func (h *Hub) register(c *Client) {
	h.clients[c.ID] = c
	h.metrics.ConnectionOpened()
	h.logger.Debugw("relay connection registered", "conn_id", c.ID)
}

func (h *Hub) unregister(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
	h.metrics.ConnectionClosed()

	if tag, ok := h.untag(c.ID); ok {
		if h.cfg.AnnounceDisconnect {
			h.broadcastMembership(domain.KindUserLeft, tag.Room, tag.DisplayName, c.ID)
		}
	}
	h.logger.Debugw("relay connection unregistered", "conn_id", c.ID)
}

// frameHeader holds the only fields the relay reads from an envelope.
type frameHeader struct {
	Kind        domain.Kind
	Room        domain.RoomCode
	DisplayName string
}

func parseFrame(data []byte) (map[string]json.RawMessage, frameHeader, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, frameHeader{}, fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err)
	}

	var hdr frameHeader
	var kind, room string
	if raw, ok := fields["type"]; !ok || json.Unmarshal(raw, &kind) != nil || kind == "" {
		return nil, hdr, fmt.Errorf("%w: missing type", domain.ErrMalformedEnvelope)
	}
	if raw, ok := fields["roomId"]; !ok || json.Unmarshal(raw, &room) != nil || room == "" {
		return nil, hdr, fmt.Errorf("%w: missing roomId", domain.ErrMalformedEnvelope)
	}
	if raw, ok := fields["displayName"]; ok {
		_ = json.Unmarshal(raw, &hdr.DisplayName)
	}

	hdr.Kind = domain.Kind(kind)
	hdr.Room = domain.NormalizeRoomCode(room)
	return fields, hdr, nil
}

func (h *Hub) route(sender *Client, data []byte) {
	if _, ok := h.clients[sender.ID]; !ok {
		return
	}

	fields, hdr, err := parseFrame(data)
	if err != nil {
		h.metrics.MalformedFrame()
		h.logger.Debugw("dropping malformed frame", "conn_id", sender.ID, "error", err)
		return
	}

	_, span := tracing.TraceRelayRoute(context.Background(), string(hdr.Kind), string(hdr.Room), string(sender.ID))
	defer span.End()

	switch hdr.Kind {
	case domain.KindJoinRoom:
		if hdr.DisplayName == "" {
			h.metrics.MalformedFrame()
			return
		}
		if prev, ok := h.registry.TagOf(sender.ID); ok && prev.Room != hdr.Room {
			// moving rooms without leave_room; tell the old room
			h.untag(sender.ID)
			h.broadcastMembership(domain.KindUserLeft, prev.Room, prev.DisplayName, sender.ID)
		}
		h.registry.Tag(sender.ID, hdr.Room, hdr.DisplayName)
		h.metrics.SetRoomsOccupied(h.registry.RoomCount())
		h.broadcastMembership(domain.KindUserJoined, hdr.Room, hdr.DisplayName, sender.ID)

	case domain.KindLeaveRoom:
		name := hdr.DisplayName
		if tag, ok := h.registry.TagOf(sender.ID); ok && name == "" {
			name = tag.DisplayName
		}
		h.broadcastMembership(domain.KindUserLeft, hdr.Room, name, sender.ID)
		h.untag(sender.ID)

	default:
		if !h.registry.Occupied(hdr.Room) {
			h.logger.Debugw("dropping frame for empty room", "conn_id", sender.ID, "room_id", hdr.Room)
			return
		}
		fields["roomId"], _ = json.Marshal(string(hdr.Room))
		fields["timestamp"], _ = json.Marshal(h.stamp(hdr.Room))
		payload, err := json.Marshal(fields)
		if err != nil {
			h.logger.Warnw("re-encoding frame failed", "conn_id", sender.ID, "error", err)
			return
		}
		h.fanout(hdr.Room, hdr.Kind, payload)
	}
}

// untag removes the connection's room tag. A room left empty loses its
// timestamp floor as well.
func (h *Hub) untag(id ConnID) (Tag, bool) {
	tag, ok := h.registry.Untag(id)
	if !ok {
		return tag, false
	}
	if !h.registry.Occupied(tag.Room) {
		delete(h.lastStamp, tag.Room)
	}
	h.metrics.SetRoomsOccupied(h.registry.RoomCount())
	return tag, true
}

func (h *Hub) broadcastMembership(kind domain.Kind, room domain.RoomCode, name string, from ConnID) {
	if !h.registry.Occupied(room) {
		return
	}
	env := domain.Envelope{
		Kind:        kind,
		RoomID:      room,
		DisplayName: name,
		Timestamp:   h.stamp(room),
	}
	payload, err := env.Encode()
	if err != nil {
		h.logger.Warnw("encoding membership event failed", "conn_id", from, "error", err)
		return
	}
	h.fanout(room, kind, payload)
}

// stamp returns a per-room non-decreasing millisecond timestamp.
func (h *Hub) stamp(room domain.RoomCode) int64 {
	ts := h.cfg.Now().UnixMilli()
	if last := h.lastStamp[room]; ts < last {
		ts = last
	}
	h.lastStamp[room] = ts
	return ts
}

// fanout queues payload to every member of room. A full queue drops the
// frame for that member only.
func (h *Hub) fanout(room domain.RoomCode, kind domain.Kind, payload []byte) {
	members := h.registry.MembersOf(room)
	if len(members) == 0 {
		return
	}

	dropped := 0
	for _, id := range members {
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case c.send <- payload:
		default:
			dropped++
			h.logger.Debugw("send buffer full, dropping frame", "conn_id", id, "room_id", room)
		}
	}
	h.metrics.EnvelopeRouted(string(kind), len(members), dropped)
}
