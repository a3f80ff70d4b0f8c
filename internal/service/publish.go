package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func parseID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("Invalid %s ID", kind), map[string]any{"id": id})
	}
	return nil
}

func notFoundOr(resource string, err error) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound(resource, nil)
	}
	return err
}

// loadAccessibleTicket returns the ticket when user owns it or is an admin.
func loadAccessibleTicket(ctx context.Context, tickets repository.TicketRepository, user *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := parseID("ticket", ticketID); err != nil {
		return nil, err
	}
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr("ticket", err)
	}
	if !user.IsAdmin() && !ticket.OwnedBy(user.ID) {
		return nil, apperrors.NewForbidden("access to ticket denied")
	}
	return ticket, nil
}
