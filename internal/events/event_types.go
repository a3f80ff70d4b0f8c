package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventMessageSent         EventType = "message_sent"
	EventMessageEdited       EventType = "message_edited"
	EventMessageDeleted      EventType = "message_deleted"
	EventMessagesRead        EventType = "messages_read"
	EventMessageDelivered    EventType = "message_delivered"
)

// AllEventTypes lists every event services publish.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketAssigned,
	EventTicketDeleted,
	EventMessageSent,
	EventMessageEdited,
	EventMessageDeleted,
	EventMessagesRead,
	EventMessageDelivered,
}

// Actor identifies who caused an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorFor builds an Actor from an account.
func ActorFor(user *domain.User) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{UserID: user.ID, Role: user.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, ticketID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	UserID string         `json:"user_id"`
	Issue  string         `json:"issue"`
	Ticket *domain.Ticket `json:"-"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Ticket    *domain.Ticket      `json:"-"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAdminID *string        `json:"previous_admin_id,omitempty"`
	AdminID         string         `json:"admin_id"`
	Ticket          *domain.Ticket `json:"-"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	UserID string `json:"user_id"`
}

// MessagePayload is shared by sent, edited and deleted message events.
type MessagePayload struct {
	MessageID string          `json:"message_id"`
	ChatType  domain.ChatType `json:"chat_type"`
	Preview   string          `json:"preview"`
	Message   *domain.Message `json:"-"`
}

// NewMessagePayload summarises msg for subscribers.
func NewMessagePayload(msg *domain.Message) MessagePayload {
	preview := msg.Content
	if r := []rune(preview); len(r) > 80 {
		preview = string(r[:80])
	}
	return MessagePayload{
		MessageID: msg.ID,
		ChatType:  msg.ChatType,
		Preview:   preview,
		Message:   msg,
	}
}

// ReceiptsPayload carries new read or delivery receipts from one chat scope.
// Each receipt is routed to the audience of its own message.
type ReceiptsPayload struct {
	Room     string                  `json:"room"`
	Receipts []domain.MessageReceipt `json:"-"`
	Count    int                     `json:"count"`
}
