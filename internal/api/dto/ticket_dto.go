package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload. The screenshot arrives as a multipart file.
type CreateTicketRequest struct {
	Issue string `json:"issue" form:"issue" validate:"max=5000"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AdminID string `json:"admin_id" form:"admin_id"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status" form:"status"`
}

// PersonRef names a user attached to a ticket.
type PersonRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	ID            string              `json:"id"`
	Issue         string              `json:"issue"`
	ScreenshotURL string              `json:"screenshot_url"`
	Status        domain.TicketStatus `json:"status"`
	User          PersonRef           `json:"user"`
	AssignedAdmin *PersonRef          `json:"assigned_admin"`
	MessageIDs    []string            `json:"message_ids"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TicketStatsResponse counts tickets per status.
type TicketStatsResponse struct {
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// TicketHistoryEntry response.
type TicketHistoryEntry struct {
	ID          string         `json:"id"`
	ChangedByID *string        `json:"changed_by_id"`
	ChangeType  string         `json:"change_type"`
	OldValue    map[string]any `json:"old_value"`
	NewValue    map[string]any `json:"new_value"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:            t.ID,
		Issue:         t.Issue,
		ScreenshotURL: t.ScreenshotURL,
		Status:        t.Status,
		User:          PersonRef{ID: t.UserID, Name: t.RequesterName, Email: t.RequesterEmail},
		MessageIDs:    t.MessageIDs,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if resp.MessageIDs == nil {
		resp.MessageIDs = []string{}
	}
	if t.AssignedAdminID != nil {
		ref := &PersonRef{ID: *t.AssignedAdminID}
		if t.AssignedAdminName != nil {
			ref.Name = *t.AssignedAdminName
		}
		resp.AssignedAdmin = ref
	}
	return resp
}

// NewTicketResponses maps a slice of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewTicketStatsResponse maps status counts.
func NewTicketStatsResponse(s domain.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{Open: s.Open, InProgress: s.InProgress, Resolved: s.Resolved}
}

// NewTicketHistory maps audit entries.
func NewTicketHistory(entries []domain.TicketHistory) []TicketHistoryEntry {
	out := make([]TicketHistoryEntry, 0, len(entries))
	for _, h := range entries {
		out = append(out, TicketHistoryEntry{
			ID:          h.ID,
			ChangedByID: h.ChangedByID,
			ChangeType:  string(h.ChangeType),
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}
