package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
)

// TicketStatuses lists every accepted status in display order.
var TicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved}

// Valid reports whether s is one of the three accepted statuses.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// MinIssueLength is the shortest accepted issue description.
const MinIssueLength = 5

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                string
	UserID            string
	RequesterName     string
	RequesterEmail    string
	AssignedAdminID   *string
	AssignedAdminName *string
	Issue             string
	ScreenshotURL     string
	ScreenshotKey     string
	Status            TicketStatus
	MessageIDs        []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OwnedBy reports whether the ticket was raised by userID.
func (t *Ticket) OwnedBy(userID string) bool {
	return t != nil && t.UserID == userID
}

// TicketStats counts tickets per status.
type TicketStats struct {
	Open       int
	InProgress int
	Resolved   int
}
