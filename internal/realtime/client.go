package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	writeWait         = 10 * time.Second
	defaultPingPeriod = 54 * time.Second
	defaultBuffer     = 256
	defaultMaxFrame   = 64 * 1024
)

// Conn is the subset of a WebSocket connection the client pumps use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Gateway persists the actions a socket can trigger.
type Gateway interface {
	AuthorizeRoom(ctx context.Context, user *domain.User, room string) error
	SendMessage(ctx context.Context, sender *domain.User, in service.SendMessageInput) (*domain.Message, error)
	MarkMessageRead(ctx context.Context, reader *domain.User, messageID string) (*domain.Message, error)
}

// ClientOptions tunes per-socket limits.
type ClientOptions struct {
	BufferSize    int
	PingPeriod    time.Duration
	MaxFrameBytes int64
}

// Client is one authenticated WebSocket connection.
type Client struct {
	ID   string
	User *domain.User

	hub     *Hub
	conn    Conn
	gateway Gateway
	send    chan []byte
	logger  *zap.Logger

	// rooms joined through join-room; touched only by the read loop.
	rooms map[string]struct{}

	pingPeriod time.Duration
	pongWait   time.Duration
	maxFrame   int64
}

// NewClient wraps conn for user.
func NewClient(hub *Hub, conn Conn, user *domain.User, gateway Gateway, opts ClientOptions, logger *zap.Logger) *Client {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBuffer
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = defaultMaxFrame
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ID:         uuid.NewString(),
		User:       user,
		hub:        hub,
		conn:       conn,
		gateway:    gateway,
		send:       make(chan []byte, opts.BufferSize),
		logger:     logger,
		rooms:      make(map[string]struct{}),
		pingPeriod: opts.PingPeriod,
		pongWait:   opts.PingPeriod * 10 / 9,
		maxFrame:   opts.MaxFrameBytes,
	}
}

// Serve registers the client and blocks in the read loop until the
// connection closes.
func (c *Client) Serve(ctx context.Context) {
	c.hub.Register(c)
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("socket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		c.handle(ctx, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("socket write failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.reject("", apperrors.NewValidationError("malformed frame", nil))
		return
	}

	switch frame.Event {
	case EventJoinRoom:
		var p roomPayload
		if err := decodeRoom(frame.Data, &p); err != nil {
			c.reject(frame.Event, err)
			return
		}
		if err := c.gateway.AuthorizeRoom(ctx, c.User, p.Room); err != nil {
			c.reject(frame.Event, err)
			return
		}
		c.rooms[p.Room] = struct{}{}
		c.hub.Join(c, p.Room)
		c.reply(EventRoomJoined, p)

	case EventLeaveRoom:
		var p roomPayload
		if err := decodeRoom(frame.Data, &p); err != nil {
			c.reject(frame.Event, err)
			return
		}
		delete(c.rooms, p.Room)
		c.hub.Leave(c, p.Room)

	case EventTyping, EventStopTyping:
		var p roomPayload
		if err := decodeRoom(frame.Data, &p); err != nil {
			c.reject(frame.Event, err)
			return
		}
		if _, ok := c.rooms[p.Room]; !ok {
			c.reject(frame.Event, apperrors.NewForbidden("join the room first"))
			return
		}
		notice := TypingNotice{Room: p.Room, UserID: c.User.ID, Name: c.User.Name}
		if err := c.hub.Relay(ctx, c, p.Room, frame.Event, notice); err != nil {
			c.reject(frame.Event, err)
		}

	case EventSendMessage:
		var p sendMessagePayload
		if err := decode(frame.Data, &p); err != nil {
			c.reject(frame.Event, err)
			return
		}
		_, err := c.gateway.SendMessage(ctx, c.User, service.SendMessageInput{
			ChatType: p.ChatType,
			TicketID: p.TicketID,
			Content:  p.Content,
			ReplyTo:  p.ReplyTo,
		})
		if err != nil {
			c.reject(frame.Event, err)
		}

	case EventMessageRead:
		var p messageReadPayload
		if err := decode(frame.Data, &p); err != nil {
			c.reject(frame.Event, err)
			return
		}
		if _, err := c.gateway.MarkMessageRead(ctx, c.User, p.MessageID); err != nil {
			c.reject(frame.Event, err)
		}

	default:
		c.reject(frame.Event, apperrors.NewValidationError("unknown event", map[string]any{"event": frame.Event}))
	}
}

func (c *Client) reply(event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		c.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	c.hub.Send(c, payload)
}

func (c *Client) reject(event string, err error) {
	de := apperrors.ToDomainError(err)
	if de.HTTPStatus >= http.StatusInternalServerError {
		c.logger.Error("socket event failed",
			zap.String("client_id", c.ID),
			zap.String("event", event),
			zap.Error(err))
	}
	c.reply(EventError, ErrorNotice{Event: event, Code: de.Code, Message: de.Message})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperrors.NewValidationError("data is required", nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewValidationError("malformed data", nil)
	}
	return nil
}

func decodeRoom(data json.RawMessage, p *roomPayload) error {
	if err := decode(data, p); err != nil {
		return err
	}
	if p.Room == "" {
		return apperrors.NewValidationError("room is required", nil)
	}
	return nil
}
