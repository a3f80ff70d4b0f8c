package realtime

import (
	"context"
	"fmt"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
)

// Broadcaster delivers an outbound event to the members of rooms.
type Broadcaster interface {
	Broadcast(ctx context.Context, rooms []string, event string, data any) error
}

// Forwarder turns domain events into socket frames.
type Forwarder struct {
	hub Broadcaster
}

// NewForwarder constructs a forwarder.
func NewForwarder(hub Broadcaster) *Forwarder {
	return &Forwarder{hub: hub}
}

// Register subscribes the forwarder to every event clients care about.
func (f *Forwarder) Register(d events.Dispatcher) {
	d.Subscribe(events.EventMessageSent, f.forwardMessage(EventReceiveMessage))
	d.Subscribe(events.EventMessageEdited, f.forwardMessage(EventMessageEdited))
	d.Subscribe(events.EventMessageDeleted, f.forwardDeleted)
	d.Subscribe(events.EventMessagesRead, f.forwardReceipts(EventMessageRead))
	d.Subscribe(events.EventMessageDelivered, f.forwardReceipts(EventMessageDelivered))
	d.Subscribe(events.EventTicketCreated, f.forwardTicketCreated)
	d.Subscribe(events.EventTicketStatusChanged, f.forwardTicketUpdated)
	d.Subscribe(events.EventTicketAssigned, f.forwardTicketUpdated)
	d.Subscribe(events.EventTicketDeleted, f.forwardTicketDeleted)
}

func (f *Forwarder) forwardMessage(name string) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.MessagePayload)
		if !ok || payload.Message == nil {
			return unexpectedPayload(event)
		}
		msg := payload.Message
		return f.hub.Broadcast(ctx, domain.AudienceForMessage(msg), name, dto.NewMessageResponse(msg))
	}
}

func (f *Forwarder) forwardDeleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessagePayload)
	if !ok || payload.Message == nil {
		return unexpectedPayload(event)
	}
	msg := payload.Message
	return f.hub.Broadcast(ctx, domain.AudienceForMessage(msg), EventMessageDeleted,
		dto.MessageDeletedEvent{MessageID: msg.ID, TicketID: msg.TicketID})
}

func (f *Forwarder) forwardReceipts(name string) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.ReceiptsPayload)
		if !ok {
			return unexpectedPayload(event)
		}
		for _, r := range payload.Receipts {
			if err := f.hub.Broadcast(ctx, r.Audience(), name, dto.NewReceiptEvent(r.Receipt)); err != nil {
				return err
			}
		}
		return nil
	}
}

func (f *Forwarder) forwardTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || payload.Ticket == nil {
		return unexpectedPayload(event)
	}
	rooms := []string{domain.RoomAdmins, domain.UserRoom(payload.Ticket.UserID)}
	return f.hub.Broadcast(ctx, rooms, EventTicketCreated, dto.NewTicketResponse(payload.Ticket))
}

func (f *Forwarder) forwardTicketUpdated(ctx context.Context, event events.Event) error {
	var ticket *domain.Ticket
	switch payload := event.Payload.(type) {
	case events.TicketStatusChangedPayload:
		ticket = payload.Ticket
	case events.TicketAssignedPayload:
		ticket = payload.Ticket
	}
	if ticket == nil {
		return unexpectedPayload(event)
	}
	return f.hub.Broadcast(ctx, ticketAudience(ticket.ID, ticket.UserID), EventTicketUpdated, dto.NewTicketResponse(ticket))
}

func (f *Forwarder) forwardTicketDeleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketDeletedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return f.hub.Broadcast(ctx, ticketAudience(event.TicketID, payload.UserID), EventTicketDeleted,
		map[string]string{"id": event.TicketID})
}

func ticketAudience(ticketID, ownerID string) []string {
	return []string{domain.RoomAdmins, domain.TicketRoom(ticketID), domain.UserRoom(ownerID)}
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("realtime: unexpected payload %T for %s", event.Payload, event.Type)
}
