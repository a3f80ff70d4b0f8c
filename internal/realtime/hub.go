package realtime

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
)

// Hub owns socket registration and room membership. All membership changes
// happen on the goroutine running Run.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	join       chan membership
	leave      chan membership
	deliver    chan Envelope
	direct     chan directMessage
	stopped    chan struct{}

	clients map[*Client]map[string]struct{}
	rooms   map[string]map[*Client]struct{}

	broker  Broker
	fanout  atomic.Bool
	logger  *zap.Logger
	metrics *observability.Metrics
}

// HubOptions configures a Hub. Broker may be nil for single-instance setups.
type HubOptions struct {
	Broker  Broker
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

type membership struct {
	client *Client
	room   string
}

type directMessage struct {
	client  *Client
	payload []byte
}

// NewHub constructs a hub. Call Run before registering clients.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		leave:      make(chan membership),
		deliver:    make(chan Envelope),
		direct:     make(chan directMessage),
		stopped:    make(chan struct{}),
		clients:    make(map[*Client]map[string]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		broker:     opts.Broker,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	if h.broker != nil {
		envelopes, err := h.broker.Subscribe(ctx)
		if err != nil {
			h.logger.Warn("realtime fan-out unavailable, delivering locally", zap.Error(err))
		} else {
			h.fanout.Store(true)
			go h.consume(envelopes)
		}
	}

	for {
		select {
		case c := <-h.register:
			h.clients[c] = make(map[string]struct{})
			h.addToRoom(c, domain.UserRoom(c.User.ID))
			if c.User.IsAdmin() {
				h.addToRoom(c, domain.RoomAdmins)
			}
			h.metrics.SocketOpened()
			h.logger.Info("socket connected",
				zap.String("client_id", c.ID),
				zap.String("user_id", c.User.ID),
				zap.Int("connected", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.logger.Info("socket disconnected",
					zap.String("client_id", c.ID),
					zap.String("user_id", c.User.ID),
					zap.Int("connected", len(h.clients)))
			}

		case m := <-h.join:
			if _, ok := h.clients[m.client]; ok {
				h.addToRoom(m.client, m.room)
			}

		case m := <-h.leave:
			h.removeFromRoom(m.client, m.room)

		case env := <-h.deliver:
			h.deliverLocal(env)

		case d := <-h.direct:
			if _, ok := h.clients[d.client]; ok {
				h.sendTo(d.client, d.payload)
			}

		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*Client]map[string]struct{})
			h.rooms = make(map[string]map[*Client]struct{})
			return
		}
	}
}

// Register adds c and joins its private room (and the admins room for admins).
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
		close(c.send)
	}
}

// Unregister removes c from every room and closes its send buffer.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Join adds c to room. Authorization is the caller's job.
func (h *Hub) Join(c *Client, room string) {
	select {
	case h.join <- membership{client: c, room: room}:
	case <-h.stopped:
	}
}

// Leave removes c from room.
func (h *Hub) Leave(c *Client, room string) {
	select {
	case h.leave <- membership{client: c, room: room}:
	case <-h.stopped:
	}
}

// Send queues payload for a single client.
func (h *Hub) Send(c *Client, payload []byte) {
	select {
	case h.direct <- directMessage{client: c, payload: payload}:
	case <-h.stopped:
	}
}

// Broadcast delivers an event to every member of rooms. A client in several
// of the rooms receives it once.
func (h *Hub) Broadcast(ctx context.Context, rooms []string, event string, data any) error {
	payload, err := Encode(event, data)
	if err != nil {
		return err
	}
	h.publish(ctx, Envelope{Rooms: rooms, Payload: payload})
	return nil
}

// Relay delivers an event to room, skipping the sending client.
func (h *Hub) Relay(ctx context.Context, from *Client, room, event string, data any) error {
	payload, err := Encode(event, data)
	if err != nil {
		return err
	}
	h.publish(ctx, Envelope{Rooms: []string{room}, ExceptID: from.ID, Payload: payload})
	return nil
}

func (h *Hub) publish(ctx context.Context, env Envelope) {
	if h.fanout.Load() {
		err := h.broker.Publish(ctx, env)
		if err == nil {
			return
		}
		h.logger.Warn("realtime fan-out publish failed, delivering locally",
			zap.Strings("rooms", env.Rooms),
			zap.Error(err))
	}
	h.enqueue(env)
}

func (h *Hub) consume(envelopes <-chan Envelope) {
	for env := range envelopes {
		h.enqueue(env)
	}
}

func (h *Hub) enqueue(env Envelope) {
	select {
	case h.deliver <- env:
	case <-h.stopped:
	}
}

func (h *Hub) deliverLocal(env Envelope) {
	targets := make(map[*Client]struct{})
	for _, room := range env.Rooms {
		for c := range h.rooms[room] {
			if c.ID != env.ExceptID {
				targets[c] = struct{}{}
			}
		}
	}
	for c := range targets {
		h.sendTo(c, env.Payload)
	}
	h.metrics.BroadcastSent()
}

func (h *Hub) sendTo(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.remove(c)
		h.metrics.SlowClientDropped()
		h.logger.Warn("dropping slow socket",
			zap.String("client_id", c.ID),
			zap.String("user_id", c.User.ID))
	}
}

func (h *Hub) addToRoom(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.clients[c][room] = struct{}{}
}

func (h *Hub) removeFromRoom(c *Client, room string) {
	if joined, ok := h.clients[c]; ok {
		delete(joined, room)
	}
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) remove(c *Client) {
	joined, ok := h.clients[c]
	if !ok {
		return
	}
	for room := range joined {
		h.removeFromRoom(c, room)
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.SocketClosed()
}
