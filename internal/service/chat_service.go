package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ChatService handles general and per-ticket chat messages.
type ChatService struct {
	messages   repository.MessageRepository
	tickets    repository.TicketRepository
	store      storage.ObjectStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ChatDependencies bundles collaborators for chat service.
type ChatDependencies struct {
	MessageRepo repository.MessageRepository
	TicketRepo  repository.TicketRepository
	Storage     storage.ObjectStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// SendMessageInput describes a new chat message. Upload takes precedence over
// Attachment, which references a file already stored elsewhere.
type SendMessageInput struct {
	ChatType   domain.ChatType
	TicketID   string
	Content    string
	ReplyTo    string
	Attachment *domain.Attachment
	Upload     *storage.Object
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		messages:   deps.MessageRepo,
		tickets:    deps.TicketRepo,
		store:      deps.Storage,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// SendMessage persists a message from sender, who automatically reads it.
func (s *ChatService) SendMessage(ctx context.Context, sender *domain.User, in SendMessageInput) (*domain.Message, error) {
	if !in.ChatType.Valid() {
		return nil, apperrors.NewValidationError("chatType must be general or ticket", map[string]any{"chat_type": in.ChatType})
	}

	content := strings.TrimSpace(in.Content)
	attachment := in.Attachment
	if attachment != nil && (strings.TrimSpace(attachment.Name) == "" || strings.TrimSpace(attachment.URL) == "") {
		attachment = nil
	}
	if content == "" && attachment == nil && in.Upload == nil {
		return nil, apperrors.NewValidationError("Message content or attachment is required", nil)
	}

	msg := &domain.Message{
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Role:       sender.Role,
		Content:    content,
		ChatType:   in.ChatType,
	}

	if in.ChatType == domain.ChatTypeTicket {
		if strings.TrimSpace(in.TicketID) == "" {
			return nil, apperrors.NewValidationError("ticket_id is required for ticket messages", nil)
		}
		ticket, err := loadAccessibleTicket(ctx, s.tickets, sender, in.TicketID)
		if err != nil {
			return nil, err
		}
		msg.TicketID = &ticket.ID
	}

	// Reply ids that are not well formed are dropped rather than rejected.
	if replyTo := strings.TrimSpace(in.ReplyTo); replyTo != "" {
		if _, err := uuid.Parse(replyTo); err == nil {
			target, err := s.replyTarget(ctx, sender, msg, replyTo)
			if err != nil {
				return nil, err
			}
			msg.ReplyToID = &target.ID
			msg.ReplyTo = &domain.MessageRef{
				ID:       target.ID,
				SenderID: target.SenderID,
				Content:  target.Content,
				Deleted:  target.Deleted,
			}
		}
	}

	var uploaded *storage.Stored
	if in.Upload != nil {
		if s.store == nil {
			return nil, apperrors.NewServiceUnavailable("uploads are not configured")
		}
		obj, err := s.store.Put(ctx, storage.KindAttachment, *in.Upload)
		if err != nil {
			return nil, err
		}
		uploaded = &obj
		attachment = &domain.Attachment{Name: strings.TrimSpace(in.Upload.Name), URL: obj.URL}
	}
	msg.Attachment = attachment

	if err := s.messages.Create(ctx, msg); err != nil {
		if uploaded != nil {
			if delErr := s.store.Delete(ctx, uploaded.Key); delErr != nil {
				s.logger.Warn("orphaned attachment", zap.String("key", uploaded.Key), zap.Error(delErr))
			}
		}
		return nil, notFoundOr("ticket", err)
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []domain.Receipt{{MessageID: msg.ID, UserID: sender.ID, Kind: domain.ReceiptRead, At: msg.CreatedAt}}
	}
	if msg.DeliveredTo == nil {
		msg.DeliveredTo = []domain.Receipt{}
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(
		events.EventMessageSent, ticketIDOf(msg), events.ActorFor(sender), events.NewMessagePayload(msg),
	))
	return msg, nil
}

// Reply posts a message through a ticket's reply endpoint. The ticket must
// exist and be visible to the caller even when chatType is general.
func (s *ChatService) Reply(ctx context.Context, sender *domain.User, ticketID string, in SendMessageInput) (*domain.Message, error) {
	if _, err := loadAccessibleTicket(ctx, s.tickets, sender, ticketID); err != nil {
		return nil, err
	}
	if in.ChatType == "" {
		return nil, apperrors.NewValidationError("Message content or attachment is required", nil)
	}
	in.TicketID = ticketID
	return s.SendMessage(ctx, sender, in)
}

// ListMessages returns a channel's messages oldest first. Users only see
// their own messages and admin messages.
func (s *ChatService) ListMessages(ctx context.Context, caller *domain.User, chatType domain.ChatType) ([]domain.Message, error) {
	if !chatType.Valid() {
		return nil, apperrors.NewValidationError("chatType must be general or ticket", map[string]any{"chat_type": chatType})
	}
	return s.messages.List(ctx, visibleFilter(caller, chatType, nil))
}

// ListTicketMessages returns a ticket thread oldest first.
func (s *ChatService) ListTicketMessages(ctx context.Context, caller *domain.User, ticketID string) ([]domain.Message, error) {
	ticket, err := loadAccessibleTicket(ctx, s.tickets, caller, ticketID)
	if err != nil {
		return nil, err
	}
	return s.messages.List(ctx, repository.MessageFilter{
		ChatType: domain.ChatTypeTicket,
		TicketID: &ticket.ID,
	})
}

// MarkChatRead marks every visible message in scope as read by reader and
// returns how many receipts were added.
func (s *ChatService) MarkChatRead(ctx context.Context, reader *domain.User, chatType domain.ChatType, ticketID string) (int, error) {
	if !chatType.Valid() {
		return 0, apperrors.NewValidationError("chatType must be general or ticket", map[string]any{"chat_type": chatType})
	}

	var scope *string
	room := domain.RoomGeneral
	if chatType == domain.ChatTypeTicket {
		if strings.TrimSpace(ticketID) == "" {
			return 0, apperrors.NewValidationError("ticket_id is required for ticket chat", nil)
		}
		ticket, err := loadAccessibleTicket(ctx, s.tickets, reader, ticketID)
		if err != nil {
			return 0, err
		}
		scope = &ticket.ID
		room = domain.TicketRoom(ticket.ID)
	}

	receipts, err := s.messages.MarkRead(ctx, visibleFilter(reader, chatType, scope), reader.ID)
	if err != nil {
		return 0, err
	}
	if len(receipts) > 0 {
		eventTicket := ""
		if scope != nil {
			eventTicket = *scope
		}
		publishEvent(ctx, s.dispatcher, s.logger, events.New(
			events.EventMessagesRead, eventTicket, events.ActorFor(reader),
			events.ReceiptsPayload{Room: room, Receipts: receipts, Count: len(receipts)},
		))
	}
	return len(receipts), nil
}

// MarkMessageRead records a read receipt for one message.
func (s *ChatService) MarkMessageRead(ctx context.Context, reader *domain.User, messageID string) (*domain.Message, error) {
	return s.addReceipt(ctx, reader, messageID, domain.ReceiptRead, events.EventMessagesRead)
}

// MarkMessageDelivered records a delivery receipt for one message.
func (s *ChatService) MarkMessageDelivered(ctx context.Context, reader *domain.User, messageID string) (*domain.Message, error) {
	return s.addReceipt(ctx, reader, messageID, domain.ReceiptDelivered, events.EventMessageDelivered)
}

func (s *ChatService) addReceipt(ctx context.Context, reader *domain.User, messageID string, kind domain.ReceiptKind, eventType events.EventType) (*domain.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, reader, msg); err != nil {
		return nil, err
	}

	receipt := &domain.Receipt{MessageID: msg.ID, UserID: reader.ID, Kind: kind}
	added, err := s.messages.AddReceipt(ctx, receipt)
	if err != nil {
		return nil, err
	}
	if added && msg.AddReceipt(*receipt) {
		publishEvent(ctx, s.dispatcher, s.logger, events.New(
			eventType, ticketIDOf(msg), events.ActorFor(reader),
			events.ReceiptsPayload{Room: domain.RoomForMessage(msg), Receipts: []domain.MessageReceipt{domain.ReceiptFor(*receipt, msg)}, Count: 1},
		))
	}
	return msg, nil
}

// EditMessage replaces the content of the caller's own message.
func (s *ChatService) EditMessage(ctx context.Context, caller *domain.User, ticketID, messageID, content string) (*domain.Message, error) {
	msg, err := s.loadThreadMessage(ctx, ticketID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != caller.ID {
		return nil, apperrors.NewForbidden("only the sender can edit a message")
	}
	if msg.Deleted {
		return nil, apperrors.NewValidationError("Cannot edit a deleted message", nil)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("newContent is required", nil)
	}

	msg.Content = content
	msg.Edited = true
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, notFoundOr("message", err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(
		events.EventMessageEdited, ticketIDOf(msg), events.ActorFor(caller), events.NewMessagePayload(msg),
	))
	return msg, nil
}

// DeleteMessage soft-deletes a message. Senders and admins may delete.
func (s *ChatService) DeleteMessage(ctx context.Context, caller *domain.User, ticketID, messageID string) (*domain.Message, error) {
	msg, err := s.loadThreadMessage(ctx, ticketID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != caller.ID && !caller.IsAdmin() {
		return nil, apperrors.NewForbidden("only the sender or an admin can delete a message")
	}
	if msg.Deleted {
		return msg, nil
	}

	msg.Content = domain.DeletedContent
	msg.Deleted = true
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, notFoundOr("message", err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(
		events.EventMessageDeleted, ticketIDOf(msg), events.ActorFor(caller), events.NewMessagePayload(msg),
	))
	return msg, nil
}

// AuthorizeRoom reports whether user may join room.
func (s *ChatService) AuthorizeRoom(ctx context.Context, user *domain.User, room string) error {
	switch {
	case room == domain.RoomGeneral:
		return nil
	case room == domain.RoomAdmins:
		if !user.IsAdmin() {
			return apperrors.NewForbidden("admin room requires admin role")
		}
		return nil
	}
	if ticketID, ok := domain.TicketIDFromRoom(room); ok {
		_, err := loadAccessibleTicket(ctx, s.tickets, user, ticketID)
		return err
	}
	return apperrors.NewValidationError("unknown room", map[string]any{"room": room})
}

func (s *ChatService) loadMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	if err := parseID("message", messageID); err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, notFoundOr("message", err)
	}
	return msg, nil
}

// loadThreadMessage loads a message and, when ticketID is given, checks that
// it belongs to that ticket.
func (s *ChatService) loadThreadMessage(ctx context.Context, ticketID, messageID string) (*domain.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if ticketID != "" && (msg.TicketID == nil || *msg.TicketID != ticketID) {
		return nil, apperrors.NewNotFound("message", map[string]any{"ticket_id": ticketID})
	}
	return msg, nil
}

// replyTarget loads the message being replied to. Targets the sender cannot
// see, or that live in another chat scope, are reported as missing.
func (s *ChatService) replyTarget(ctx context.Context, sender *domain.User, msg *domain.Message, replyTo string) (*domain.Message, error) {
	notFound := apperrors.NewValidationError("reply target not found", map[string]any{"reply_to": replyTo})
	target, err := s.messages.GetByID(ctx, replyTo)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, notFound
		}
		return nil, err
	}
	if domain.RoomForMessage(target) != domain.RoomForMessage(msg) {
		return nil, notFound
	}
	if err := s.ensureVisible(ctx, sender, target); err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && domainErr.HTTPStatus < http.StatusInternalServerError {
			return nil, notFound
		}
		return nil, err
	}
	return target, nil
}

func (s *ChatService) ensureVisible(ctx context.Context, user *domain.User, msg *domain.Message) error {
	if user.IsAdmin() {
		return nil
	}
	if msg.TicketID != nil {
		_, err := loadAccessibleTicket(ctx, s.tickets, user, *msg.TicketID)
		return err
	}
	if msg.SenderID != user.ID && msg.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("message not visible")
	}
	return nil
}

func visibleFilter(user *domain.User, chatType domain.ChatType, ticketID *string) repository.MessageFilter {
	filter := repository.MessageFilter{ChatType: chatType, TicketID: ticketID}
	if !user.IsAdmin() {
		filter.VisibleTo = &user.ID
	}
	return filter
}

func ticketIDOf(msg *domain.Message) string {
	if msg.TicketID == nil {
		return ""
	}
	return *msg.TicketID
}
