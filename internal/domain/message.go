package domain

import "time"

// ChatType scopes a message to the general channel or a ticket thread.
type ChatType string

const (
	ChatTypeGeneral ChatType = "general"
	ChatTypeTicket  ChatType = "ticket"
)

// Valid reports whether c is a known chat type.
func (c ChatType) Valid() bool {
	return c == ChatTypeGeneral || c == ChatTypeTicket
}

// DeletedContent replaces the body of soft-deleted messages.
const DeletedContent = "[deleted]"

// ReceiptKind distinguishes read from delivery receipts.
type ReceiptKind string

const (
	ReceiptRead      ReceiptKind = "read"
	ReceiptDelivered ReceiptKind = "delivered"
)

// Receipt records that a user read or received a message.
type Receipt struct {
	MessageID string
	UserID    string
	Kind      ReceiptKind
	At        time.Time
}

// MessageReceipt is a new receipt together with the fields of its message
// that decide which rooms may see it.
type MessageReceipt struct {
	Receipt
	SenderID string
	Role     Role
	ChatType ChatType
	TicketID *string
}

// ReceiptFor pairs a receipt with msg.
func ReceiptFor(r Receipt, msg *Message) MessageReceipt {
	return MessageReceipt{Receipt: r, SenderID: msg.SenderID, Role: msg.Role, ChatType: msg.ChatType, TicketID: msg.TicketID}
}

// Audience lists the rooms the receipt is broadcast to: the same rooms that
// saw the message.
func (r MessageReceipt) Audience() []string {
	return AudienceForMessage(&Message{ID: r.MessageID, SenderID: r.SenderID, Role: r.Role, ChatType: r.ChatType, TicketID: r.TicketID})
}

// Attachment is a file uploaded alongside a message.
type Attachment struct {
	Name string
	URL  string
}

// MessageRef is the quoted message a reply points at.
type MessageRef struct {
	ID       string
	SenderID string
	Content  string
	Deleted  bool
}

// Message is a chat entry tied to the general channel or a ticket.
type Message struct {
	ID          string
	SenderID    string
	SenderName  string
	Role        Role
	Content     string
	ChatType    ChatType
	TicketID    *string
	ReplyToID   *string
	ReplyTo     *MessageRef
	Attachment  *Attachment
	ReadBy      []Receipt
	DeliveredTo []Receipt
	Edited      bool
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReadByUser reports whether userID already has a read receipt.
func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// AddReceipt appends r to the matching receipt list unless the user is
// already present. It returns false when nothing changed.
func (m *Message) AddReceipt(r Receipt) bool {
	list := &m.ReadBy
	if r.Kind == ReceiptDelivered {
		list = &m.DeliveredTo
	}
	for _, existing := range *list {
		if existing.UserID == r.UserID {
			return false
		}
	}
	*list = append(*list, r)
	return true
}
