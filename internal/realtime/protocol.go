package realtime

import (
	"encoding/json"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Inbound events sent by clients.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventTyping      = "typing"
	EventStopTyping  = "stop-typing"
	EventSendMessage = "send-message"
	EventMessageRead = "message-read"
)

// Outbound events pushed to clients.
const (
	EventReceiveMessage   = "receive-message"
	EventMessageEdited    = "message-edited"
	EventMessageDeleted   = "message-deleted"
	EventMessageDelivered = "message-delivered"
	EventTicketCreated    = "ticket-created"
	EventTicketUpdated    = "ticket-updated"
	EventTicketDeleted    = "ticket-deleted"
	EventRoomJoined       = "room-joined"
	EventError            = "error"
)

// Frame is the envelope for every WebSocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode marshals an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data})
}

type roomPayload struct {
	Room string `json:"room"`
}

type sendMessagePayload struct {
	ChatType domain.ChatType `json:"chat_type"`
	TicketID string          `json:"ticket_id"`
	Content  string          `json:"content"`
	ReplyTo  string          `json:"reply_to"`
}

type messageReadPayload struct {
	MessageID string `json:"message_id"`
}

// TypingNotice is relayed to the other members of a room.
type TypingNotice struct {
	Room   string `json:"room"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// ErrorNotice reports a rejected inbound frame to its sender.
type ErrorNotice struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
