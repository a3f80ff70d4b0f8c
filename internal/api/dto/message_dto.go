package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AttachmentPayload references a file that is already hosted.
type AttachmentPayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SendMessageRequest payload for POST /api/chat/send.
type SendMessageRequest struct {
	ChatType   domain.ChatType    `json:"chat_type" form:"chat_type" validate:"required,oneof=general ticket"`
	TicketID   string             `json:"ticket_id" form:"ticket_id"`
	Content    string             `json:"content" form:"content" validate:"max=5000"`
	ReplyTo    string             `json:"reply_to" form:"reply_to"`
	Attachment *AttachmentPayload `json:"attachment" form:"-"`
}

// TicketMessageRequest payload for messages posted to a ticket thread.
type TicketMessageRequest struct {
	Content  string          `json:"content" form:"content" validate:"max=5000"`
	ReplyTo  string          `json:"reply_to" form:"reply_to"`
	ChatType domain.ChatType `json:"chat_type" form:"chat_type"`
}

// EditMessageRequest payload.
type EditMessageRequest struct {
	NewContent string `json:"new_content" validate:"max=5000"`
}

// MarkReadRequest payload.
type MarkReadRequest struct {
	ChatType domain.ChatType `json:"chat_type" validate:"required,oneof=general ticket"`
	TicketID string          `json:"ticket_id"`
}

// MarkReadResponse reports how many receipts were added.
type MarkReadResponse struct {
	Marked int `json:"marked"`
}

// SenderRef identifies who wrote a message.
type SenderRef struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// ReplyRef quotes the message being replied to.
type ReplyRef struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
	Deleted  bool   `json:"deleted"`
}

// ReceiptResponse records who read or received a message.
type ReceiptResponse struct {
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// MessageResponse is the public view of a chat message.
type MessageResponse struct {
	ID          string             `json:"id"`
	Sender      SenderRef          `json:"sender"`
	Role        domain.Role        `json:"role"`
	Content     string             `json:"content"`
	ChatType    domain.ChatType    `json:"chat_type"`
	TicketID    *string            `json:"ticket_id"`
	ReplyTo     *ReplyRef          `json:"reply_to"`
	Attachment  *AttachmentPayload `json:"attachment"`
	ReadBy      []ReceiptResponse  `json:"read_by"`
	DeliveredTo []ReceiptResponse  `json:"delivered_to"`
	Edited      bool               `json:"edited"`
	Deleted     bool               `json:"deleted"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ReceiptEvent is broadcast when a message gains a receipt.
type ReceiptEvent struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	At        time.Time `json:"at"`
}

// MessageDeletedEvent is broadcast when a message is soft-deleted.
type MessageDeletedEvent struct {
	MessageID string  `json:"message_id"`
	TicketID  *string `json:"ticket_id"`
}

// NewMessageResponse maps a message. Deleted messages drop their attachment.
func NewMessageResponse(m *domain.Message) MessageResponse {
	resp := MessageResponse{
		ID:          m.ID,
		Sender:      SenderRef{ID: m.SenderID, Name: m.SenderName, Role: m.Role},
		Role:        m.Role,
		Content:     m.Content,
		ChatType:    m.ChatType,
		TicketID:    m.TicketID,
		ReadBy:      receipts(m.ReadBy),
		DeliveredTo: receipts(m.DeliveredTo),
		Edited:      m.Edited,
		Deleted:     m.Deleted,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ReplyTo != nil {
		ref := &ReplyRef{
			ID:       m.ReplyTo.ID,
			SenderID: m.ReplyTo.SenderID,
			Content:  m.ReplyTo.Content,
			Deleted:  m.ReplyTo.Deleted,
		}
		if ref.Deleted {
			ref.Content = domain.DeletedContent
		}
		resp.ReplyTo = ref
	}
	if m.Attachment != nil && !m.Deleted {
		resp.Attachment = &AttachmentPayload{Name: m.Attachment.Name, URL: m.Attachment.URL}
	}
	return resp
}

// NewMessageResponses maps a slice of messages.
func NewMessageResponses(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageResponse(&msgs[i]))
	}
	return out
}

// NewReceiptEvent maps a receipt for broadcast.
func NewReceiptEvent(r domain.Receipt) ReceiptEvent {
	return ReceiptEvent{MessageID: r.MessageID, UserID: r.UserID, At: r.At}
}

func receipts(list []domain.Receipt) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(list))
	for _, r := range list {
		out = append(out, ReceiptResponse{UserID: r.UserID, At: r.At})
	}
	return out
}
