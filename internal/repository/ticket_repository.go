package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListAssigned(ctx context.Context, adminID string) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	Assign(ctx context.Context, id, adminID string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketSelect = `
        SELECT t.id, t.user_id, u.name, u.email, t.assigned_admin_id, a.name,
               t.issue, t.screenshot_url, t.screenshot_key, t.status, t.message_ids::text[], t.created_at, t.updated_at
        FROM tickets t
        JOIN users u ON u.id = t.user_id
        LEFT JOIN users a ON a.id = t.assigned_admin_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, issue, screenshot_url, screenshot_key, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.Issue,
		ticket.ScreenshotURL,
		ticket.ScreenshotKey,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, id))
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return r.list(ctx, ticketSelect+` WHERE t.user_id=$1 ORDER BY t.created_at DESC`, userID)
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	return r.list(ctx, ticketSelect+` ORDER BY t.created_at DESC`)
}

func (r *ticketRepository) ListAssigned(ctx context.Context, adminID string) ([]domain.Ticket, error) {
	return r.list(ctx, ticketSelect+` WHERE t.assigned_admin_id=$1 ORDER BY t.created_at DESC`, adminID)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	return r.exec(ctx, `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
}

func (r *ticketRepository) Assign(ctx context.Context, id, adminID string) error {
	return r.exec(ctx, `UPDATE tickets SET assigned_admin_id=$1, updated_at=NOW() WHERE id=$2`, adminID, id)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Stats(ctx context.Context) (domain.TicketStats, error) {
	const query = `SELECT status, COUNT(*) FROM tickets GROUP BY status`
	var stats domain.TicketStats

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status domain.TicketStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		switch status {
		case domain.TicketStatusOpen:
			stats.Open = count
		case domain.TicketStatusInProgress:
			stats.InProgress = count
		case domain.TicketStatusResolved:
			stats.Resolved = count
		}
	}
	return stats, rows.Err()
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.AssignedAdminID,
		&ticket.AssignedAdminName,
		&ticket.Issue,
		&ticket.ScreenshotURL,
		&ticket.ScreenshotKey,
		&ticket.Status,
		&ticket.MessageIDs,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
