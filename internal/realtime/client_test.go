package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type fakeGateway struct {
	mu      sync.Mutex
	denied  map[string]bool
	sent    []service.SendMessageInput
	read    []string
	sendErr error
}

func (g *fakeGateway) AuthorizeRoom(ctx context.Context, user *domain.User, room string) error {
	if g.denied[room] {
		return apperrors.NewForbidden("access to ticket denied")
	}
	return nil
}

func (g *fakeGateway) SendMessage(ctx context.Context, sender *domain.User, in service.SendMessageInput) (*domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	g.sent = append(g.sent, in)
	return &domain.Message{ID: "m1", SenderID: sender.ID, ChatType: in.ChatType}, nil
}

func (g *fakeGateway) MarkMessageRead(ctx context.Context, reader *domain.User, messageID string) (*domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.read = append(g.read, messageID)
	return &domain.Message{ID: messageID}, nil
}

func (g *fakeGateway) snapshot() ([]service.SendMessageInput, []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]service.SendMessageInput(nil), g.sent...), append([]string(nil), g.read...)
}

func connect(t *testing.T, h *Hub, user *domain.User, gw Gateway) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	c := NewClient(h, conn, user, gw, ClientOptions{BufferSize: 16, PingPeriod: time.Hour}, nil)
	go c.Serve(context.Background())
	t.Cleanup(func() { _ = conn.Close() })
	return c, conn
}

func sendFrame(conn *fakeConn, event string, data any) {
	raw, _ := json.Marshal(data)
	payload, _ := json.Marshal(Frame{Event: event, Data: raw})
	conn.inbound <- payload
}

func nextFrame(t *testing.T, conn *fakeConn) Frame {
	t.Helper()
	select {
	case payload := <-conn.writes:
		var f Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func errorCode(t *testing.T, f Frame) string {
	t.Helper()
	if f.Event != EventError {
		t.Fatalf("expected error frame, got %q", f.Event)
	}
	var notice ErrorNotice
	if err := json.Unmarshal(f.Data, &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	return notice.Code
}

func TestClientJoinRoomThenReceivesBroadcast(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	_, conn := connect(t, h, alice, &fakeGateway{})

	room := domain.TicketRoom("t1")
	sendFrame(conn, EventJoinRoom, roomPayload{Room: room})
	if f := nextFrame(t, conn); f.Event != EventRoomJoined {
		t.Fatalf("got %q", f.Event)
	}

	_ = h.Broadcast(context.Background(), []string{room}, EventReceiveMessage, map[string]string{"id": "m1"})
	if f := nextFrame(t, conn); f.Event != EventReceiveMessage {
		t.Fatalf("got %q", f.Event)
	}
}

func TestClientJoinRoomDenied(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	room := domain.TicketRoom("t2")
	_, conn := connect(t, h, bob, &fakeGateway{denied: map[string]bool{room: true}})

	sendFrame(conn, EventJoinRoom, roomPayload{Room: room})
	if code := errorCode(t, nextFrame(t, conn)); code != "FORBIDDEN" {
		t.Fatalf("code = %q", code)
	}
}

func TestClientTypingRequiresMembership(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	room := domain.TicketRoom("t1")
	_, typist := connect(t, h, alice, &fakeGateway{})
	_, listener := connect(t, h, ada, &fakeGateway{})

	sendFrame(typist, EventTyping, roomPayload{Room: room})
	if code := errorCode(t, nextFrame(t, typist)); code != "FORBIDDEN" {
		t.Fatalf("code = %q", code)
	}

	for _, conn := range []*fakeConn{typist, listener} {
		sendFrame(conn, EventJoinRoom, roomPayload{Room: room})
		nextFrame(t, conn)
	}

	sendFrame(typist, EventTyping, roomPayload{Room: room})
	f := nextFrame(t, listener)
	if f.Event != EventTyping {
		t.Fatalf("got %q", f.Event)
	}
	var notice TypingNotice
	if err := json.Unmarshal(f.Data, &notice); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if notice.UserID != alice.ID || notice.Room != room || notice.Name != "Alice" {
		t.Fatalf("notice = %+v", notice)
	}
}

func TestClientSendMessageAndRead(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	gw := &fakeGateway{}
	_, conn := connect(t, h, alice, gw)

	sendFrame(conn, EventSendMessage, sendMessagePayload{ChatType: domain.ChatTypeTicket, TicketID: "t1", Content: "hello"})
	sendFrame(conn, EventMessageRead, messageReadPayload{MessageID: "m9"})
	// an unknown event after both guarantees they were handled
	sendFrame(conn, "wave", map[string]string{})
	if code := errorCode(t, nextFrame(t, conn)); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %q", code)
	}

	sent, read := gw.snapshot()
	if len(sent) != 1 || sent[0].TicketID != "t1" || sent[0].Content != "hello" || sent[0].ChatType != domain.ChatTypeTicket {
		t.Fatalf("sent = %+v", sent)
	}
	if len(read) != 1 || read[0] != "m9" {
		t.Fatalf("read = %v", read)
	}
}

func TestClientReportsGatewayErrors(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	gw := &fakeGateway{sendErr: apperrors.NewValidationError("Message content or attachment is required", nil)}
	_, conn := connect(t, h, alice, gw)

	sendFrame(conn, EventSendMessage, sendMessagePayload{ChatType: domain.ChatTypeGeneral})
	f := nextFrame(t, conn)
	var notice ErrorNotice
	_ = json.Unmarshal(f.Data, &notice)
	if notice.Event != EventSendMessage || notice.Message != "Message content or attachment is required" {
		t.Fatalf("notice = %+v", notice)
	}
}

func TestClientRejectsMalformedFrames(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	_, conn := connect(t, h, alice, &fakeGateway{})

	conn.inbound <- []byte("{not json")
	if code := errorCode(t, nextFrame(t, conn)); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %q", code)
	}

	sendFrame(conn, EventJoinRoom, roomPayload{})
	if code := errorCode(t, nextFrame(t, conn)); code != "VALIDATION_FAILED" {
		t.Fatalf("code = %q", code)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	h, _ := startHub(t, HubOptions{})
	c, conn := connect(t, h, alice, &fakeGateway{})
	sendFrame(conn, EventJoinRoom, roomPayload{Room: domain.RoomGeneral})
	nextFrame(t, conn)

	_ = conn.Close()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("client was not unregistered")
		}
	}
}
