package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
)

var (
	alice = &domain.User{ID: "u-alice", Name: "Alice", Role: domain.RoleUser}
	bob   = &domain.User{ID: "u-bob", Name: "Bob", Role: domain.RoleUser}
	ada   = &domain.User{ID: "a-ada", Name: "Ada", Role: domain.RoleAdmin}
)

type fakeConn struct {
	inbound chan []byte
	writes  chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	if messageType == websocket.TextMessage {
		f.writes <- data
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                 {}
func (f *fakeConn) SetReadDeadline(time.Time) error    { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func startHub(t *testing.T, opts HubOptions) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

// barrier returns once the hub has finished every request queued before it.
func barrier(h *Hub) {
	h.Leave(&Client{}, "barrier")
}

func registered(h *Hub, user *domain.User, buffer int) *Client {
	c := NewClient(h, newFakeConn(), user, nil, ClientOptions{BufferSize: buffer}, nil)
	h.Register(c)
	return c
}

func receive(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var f Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func assertNothingQueued(t *testing.T, c *Client) {
	t.Helper()
	if n := len(c.send); n != 0 {
		t.Fatalf("client %s has %d queued frames", c.User.Name, n)
	}
}

func TestHubRegisterJoinsPrivateAndAdminRooms(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	user := registered(h, alice, 8)
	admin := registered(h, ada, 8)

	if err := h.Broadcast(context.Background(), []string{domain.RoomAdmins}, EventTicketCreated, "t1"); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if f := receive(t, admin); f.Event != EventTicketCreated {
		t.Fatalf("admin got %q", f.Event)
	}
	barrier(h)
	assertNothingQueued(t, user)

	_ = h.Broadcast(context.Background(), []string{domain.UserRoom(alice.ID)}, EventTicketUpdated, "t1")
	if f := receive(t, user); f.Event != EventTicketUpdated {
		t.Fatalf("user got %q", f.Event)
	}
	barrier(h)
	assertNothingQueued(t, admin)
}

func TestHubDeliversOncePerClient(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	admin := registered(h, ada, 8)
	h.Join(admin, domain.RoomGeneral)

	_ = h.Broadcast(context.Background(), []string{domain.RoomGeneral, domain.RoomAdmins}, EventReceiveMessage, "hi")
	receive(t, admin)
	barrier(h)
	assertNothingQueued(t, admin)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	c := registered(h, alice, 8)
	h.Join(c, domain.RoomGeneral)
	h.Leave(c, domain.RoomGeneral)

	_ = h.Broadcast(context.Background(), []string{domain.RoomGeneral}, EventReceiveMessage, "hi")
	barrier(h)
	assertNothingQueued(t, c)
}

func TestHubRelaySkipsSender(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	sender := registered(h, alice, 8)
	other := registered(h, ada, 8)
	room := domain.TicketRoom("t1")
	h.Join(sender, room)
	h.Join(other, room)

	if err := h.Relay(context.Background(), sender, room, EventTyping, TypingNotice{Room: room, UserID: alice.ID}); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if f := receive(t, other); f.Event != EventTyping {
		t.Fatalf("got %q", f.Event)
	}
	barrier(h)
	assertNothingQueued(t, sender)
}

func TestHubDropsSlowClients(t *testing.T) {
	metrics := observability.NewMetrics()
	h, _ := startHub(t, HubOptions{Metrics: metrics})
	slow := registered(h, alice, 1)
	room := []string{domain.UserRoom(alice.ID)}

	_ = h.Broadcast(context.Background(), room, EventReceiveMessage, 1)
	_ = h.Broadcast(context.Background(), room, EventReceiveMessage, 2)
	barrier(h)

	if _, ok := <-slow.send; !ok {
		t.Fatal("first frame should have been delivered")
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("slow client should have been closed")
	}
	snap := metrics.Snapshot()
	if snap.SlowClients != 1 || snap.SocketsOpen != 0 {
		t.Fatalf("metrics = %+v", snap)
	}

	// a later unregister for the dropped client is a no-op
	h.Unregister(slow)
	barrier(h)
}

func TestHubStopClosesClients(t *testing.T) {
	h, cancel := startHub(t, HubOptions{})
	c := registered(h, alice, 8)
	cancel()

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client not closed on shutdown")
	}

	late := NewClient(h, newFakeConn(), bob, nil, ClientOptions{}, nil)
	h.Register(late)
	if _, ok := <-late.send; ok {
		t.Fatal("registering after shutdown should close the client")
	}
}

type loopbackBroker struct {
	mu        sync.Mutex
	published int
	fail      bool
	out       chan Envelope
}

func (b *loopbackBroker) Publish(ctx context.Context, env Envelope) error {
	b.mu.Lock()
	b.published++
	b.mu.Unlock()
	if b.fail {
		return errors.New("redis down")
	}
	b.out <- env
	return nil
}

func (b *loopbackBroker) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	return b.out, nil
}

func (b *loopbackBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published
}

func TestHubFansOutThroughBroker(t *testing.T) {
	broker := &loopbackBroker{out: make(chan Envelope, 4)}
	h, _ := startHub(t, HubOptions{Broker: broker})
	c := registered(h, alice, 8)

	_ = h.Broadcast(context.Background(), []string{domain.UserRoom(alice.ID)}, EventReceiveMessage, "x")
	receive(t, c)
	if broker.count() != 1 {
		t.Fatalf("published = %d", broker.count())
	}
}

func TestHubFallsBackWhenPublishFails(t *testing.T) {
	broker := &loopbackBroker{out: make(chan Envelope, 4), fail: true}
	h, _ := startHub(t, HubOptions{Broker: broker})
	c := registered(h, alice, 8)

	_ = h.Broadcast(context.Background(), []string{domain.UserRoom(alice.ID)}, EventReceiveMessage, "x")
	receive(t, c)
	if broker.count() != 1 {
		t.Fatalf("published = %d", broker.count())
	}
}

type deadBroker struct{}

func (deadBroker) Publish(context.Context, Envelope) error { return errors.New("unreachable") }
func (deadBroker) Subscribe(context.Context) (<-chan Envelope, error) {
	return nil, errors.New("unreachable")
}

func TestHubWithoutSubscriptionDeliversLocally(t *testing.T) {
	h, _ := startHub(t, HubOptions{Broker: deadBroker{}})
	c := registered(h, alice, 8)

	_ = h.Broadcast(context.Background(), []string{domain.UserRoom(alice.ID)}, EventReceiveMessage, "x")
	receive(t, c)
}
