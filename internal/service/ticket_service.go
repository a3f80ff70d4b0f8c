package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	store      storage.ObjectStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Storage     storage.ObjectStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Issue      string
	Screenshot *storage.Object
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		store:      deps.Storage,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket stores the optional screenshot and opens a ticket for user.
func (s *TicketService) CreateTicket(ctx context.Context, user *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	issue := strings.TrimSpace(input.Issue)
	if issue == "" {
		return nil, apperrors.NewValidationError("Issue is required", nil)
	}
	if utf8.RuneCountInString(issue) < domain.MinIssueLength {
		return nil, apperrors.NewValidationError("Issue is too short", map[string]any{"min_length": domain.MinIssueLength})
	}

	ticket := &domain.Ticket{
		UserID:         user.ID,
		RequesterName:  user.Name,
		RequesterEmail: user.Email,
		Issue:          issue,
		Status:         domain.TicketStatusOpen,
		MessageIDs:     []string{},
	}

	var stored *storage.Stored
	if input.Screenshot != nil {
		if s.store == nil {
			return nil, apperrors.NewServiceUnavailable("uploads are not configured")
		}
		obj, err := s.store.Put(ctx, storage.KindScreenshot, *input.Screenshot)
		if err != nil {
			return nil, err
		}
		stored = &obj
		ticket.ScreenshotURL = obj.URL
		ticket.ScreenshotKey = obj.Key
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if stored != nil {
			if delErr := s.store.Delete(ctx, stored.Key); delErr != nil {
				s.logger.Warn("orphaned screenshot", zap.String("key", stored.Key), zap.Error(delErr))
			}
		}
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(
		events.EventTicketCreated, ticket.ID, events.ActorFor(user),
		events.TicketCreatedPayload{UserID: user.ID, Issue: ticket.Issue, Ticket: ticket},
	))
	return ticket, nil
}

// ListMyTickets returns the caller's tickets, newest first.
func (s *TicketService) ListMyTickets(ctx context.Context, user *domain.User) ([]domain.Ticket, error) {
	return s.tickets.ListByUser(ctx, user.ID)
}

// ListAllTickets returns every ticket for admins.
func (s *TicketService) ListAllTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.ListAll(ctx)
}

// ListAssignedTickets returns tickets assigned to admin.
func (s *TicketService) ListAssignedTickets(ctx context.Context, admin *domain.User) ([]domain.Ticket, error) {
	return s.tickets.ListAssigned(ctx, admin.ID)
}

// GetTicket returns a ticket visible to user.
func (s *TicketService) GetTicket(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error) {
	return loadAccessibleTicket(ctx, s.tickets, user, ticketID)
}

// AssignTicket hands a ticket to another admin.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, adminID string) (*domain.Ticket, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return nil, apperrors.NewValidationError("Admin ID is required", nil)
	}
	if err := parseID("ticket", ticketID); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr("ticket", err)
	}

	if err := parseID("admin", adminID); err != nil {
		return nil, err
	}
	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	if admin == nil || !admin.IsAdmin() {
		return nil, apperrors.NewValidationError("Invalid admin ID", map[string]any{"admin_id": adminID})
	}

	previous := ticket.AssignedAdminID
	if err := s.tickets.Assign(ctx, ticket.ID, admin.ID); err != nil {
		return nil, notFoundOr("ticket", err)
	}
	ticket.AssignedAdminID = &admin.ID
	ticket.AssignedAdminName = &admin.Name

	oldValue := map[string]any{"assigned_admin_id": nil}
	if previous != nil {
		oldValue["assigned_admin_id"] = *previous
	}
	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeAssignee, oldValue,
		map[string]any{"assigned_admin_id": admin.ID})

	publishEvent(ctx, s.dispatcher, s.logger, events.New(
		events.EventTicketAssigned, ticket.ID, events.ActorFor(actor),
		events.TicketAssignedPayload{PreviousAdminID: previous, AdminID: admin.ID, Ticket: ticket},
	))
	return ticket, nil
}

// UpdateStatus sets the ticket status to one of the three accepted values.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("Invalid status value", map[string]any{"status": status})
	}
	if err := parseID("ticket", ticketID); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr("ticket", err)
	}

	oldStatus := ticket.Status
	if err := s.tickets.UpdateStatus(ctx, ticket.ID, status); err != nil {
		return nil, notFoundOr("ticket", err)
	}
	ticket.Status = status

	if oldStatus != status {
		s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus}, map[string]any{"status": status})
		publishEvent(ctx, s.dispatcher, s.logger, events.New(
			events.EventTicketStatusChanged, ticket.ID, events.ActorFor(actor),
			events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: status, Ticket: ticket},
		))
	}
	return ticket, nil
}

// DeleteTicket removes a ticket and its thread. Only the owner may do this.
func (s *TicketService) DeleteTicket(ctx context.Context, user *domain.User, ticketID string) error {
	if err := parseID("ticket", ticketID); err != nil {
		return err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return notFoundOr("ticket", err)
	}
	if !ticket.OwnedBy(user.ID) {
		return apperrors.NewForbidden("Unauthorized to delete this ticket")
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return notFoundOr("ticket", err)
	}
	if ticket.ScreenshotKey != "" && s.store != nil {
		if err := s.store.Delete(ctx, ticket.ScreenshotKey); err != nil {
			s.logger.Warn("orphaned screenshot", zap.String("key", ticket.ScreenshotKey), zap.Error(err))
		}
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(
		events.EventTicketDeleted, ticket.ID, events.ActorFor(user),
		events.TicketDeletedPayload{UserID: ticket.UserID},
	))
	return nil
}

// Stats counts tickets per status.
func (s *TicketService) Stats(ctx context.Context) (domain.TicketStats, error) {
	return s.tickets.Stats(ctx)
}

// History lists audit entries for a ticket.
func (s *TicketService) History(ctx context.Context, user *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := loadAccessibleTicket(ctx, s.tickets, user, ticketID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	return s.history.ListByTicket(ctx, ticketID)
}

func (s *TicketService) recordHistory(ctx context.Context, actor *domain.User, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if actor != nil {
		entry.ChangedByID = &actor.ID
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record ticket history",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(changeType)),
			zap.Error(err))
	}
}
