package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// MessageFilter scopes message listings and bulk receipts.
type MessageFilter struct {
	ChatType domain.ChatType
	TicketID *string
	// VisibleTo limits results to the user's own messages plus admin
	// messages, and to ticket threads the user owns.
	VisibleTo *string
}

// MessageRepository persists chat messages and their receipts.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, filter MessageFilter) ([]domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) error
	MarkRead(ctx context.Context, filter MessageFilter, readerID string) ([]domain.MessageReceipt, error)
	AddReceipt(ctx context.Context, receipt *domain.Receipt) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository returns a Postgres-backed implementation.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageSelect = `
        SELECT m.id, m.sender_id, s.name, m.role, m.content, m.chat_type, m.ticket_id, m.reply_to_id,
               rt.sender_id, rt.content, rt.deleted,
               m.attachment_name, m.attachment_url, m.edited, m.deleted, m.created_at, m.updated_at
        FROM messages m
        JOIN users s ON s.id = m.sender_id
        LEFT JOIN messages rt ON rt.id = m.reply_to_id
        LEFT JOIN tickets t ON t.id = m.ticket_id`

// Create inserts the message, records the sender's own read receipt and, for
// ticket messages, appends the id to the ticket in one transaction.
func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var attachmentName, attachmentURL string
	if msg.Attachment != nil {
		attachmentName = msg.Attachment.Name
		attachmentURL = msg.Attachment.URL
	}

	const insertMessage = `
        INSERT INTO messages (sender_id, role, content, chat_type, ticket_id, reply_to_id, attachment_name, attachment_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertMessage,
		msg.SenderID,
		msg.Role,
		msg.Content,
		msg.ChatType,
		msg.TicketID,
		msg.ReplyToID,
		attachmentName,
		attachmentURL,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return err
	}

	receipt := domain.Receipt{MessageID: msg.ID, UserID: msg.SenderID, Kind: domain.ReceiptRead}
	const insertReceipt = `
        INSERT INTO message_receipts (message_id, user_id, kind)
        VALUES ($1,$2,$3)
        RETURNING at`
	if err := tx.QueryRow(ctx, insertReceipt, receipt.MessageID, receipt.UserID, receipt.Kind).Scan(&receipt.At); err != nil {
		return err
	}
	msg.ReadBy = []domain.Receipt{receipt}

	if msg.ChatType == domain.ChatTypeTicket && msg.TicketID != nil {
		const appendToTicket = `
        UPDATE tickets SET message_ids = array_append(message_ids, $1), updated_at=NOW()
        WHERE id=$2`
		cmd, err := tx.Exec(ctx, appendToTicket, msg.ID, *msg.TicketID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
	}

	return tx.Commit(ctx)
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, messageSelect+` WHERE m.id=$1`, id))
	if err != nil {
		return nil, err
	}
	messages := []domain.Message{*msg}
	if err := r.attachReceipts(ctx, messages); err != nil {
		return nil, err
	}
	return &messages[0], nil
}

func (r *messageRepository) List(ctx context.Context, filter MessageFilter) ([]domain.Message, error) {
	where, args := filter.where()
	query := fmt.Sprintf(`%s WHERE %s ORDER BY m.created_at ASC`, messageSelect, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.attachReceipts(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) Update(ctx context.Context, msg *domain.Message) error {
	const query = `
        UPDATE messages SET content=$1, edited=$2, deleted=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		msg.Content,
		msg.Edited,
		msg.Deleted,
		msg.ID,
	).Scan(&msg.UpdatedAt)
}

// MarkRead adds a read receipt for readerID on every message in scope that
// lacks one and returns only the receipts that were newly created.
func (r *messageRepository) MarkRead(ctx context.Context, filter MessageFilter, readerID string) ([]domain.MessageReceipt, error) {
	where, args := filter.where()
	args = append(args, readerID)
	query := fmt.Sprintf(`
        WITH added AS (
            INSERT INTO message_receipts (message_id, user_id, kind)
            SELECT m.id, $%d, '%s'
            FROM messages m
            LEFT JOIN tickets t ON t.id = m.ticket_id
            WHERE %s
            ON CONFLICT DO NOTHING
            RETURNING message_id, user_id, kind, at
        )
        SELECT a.message_id, a.user_id, a.kind, a.at, m.sender_id, m.role, m.chat_type, m.ticket_id
        FROM added a
        JOIN messages m ON m.id = a.message_id
        ORDER BY m.created_at ASC`, len(args), domain.ReceiptRead, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := []domain.MessageReceipt{}
	for rows.Next() {
		var rc domain.MessageReceipt
		if err := rows.Scan(&rc.MessageID, &rc.UserID, &rc.Kind, &rc.At, &rc.SenderID, &rc.Role, &rc.ChatType, &rc.TicketID); err != nil {
			return nil, err
		}
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}

// AddReceipt stores a single receipt. It reports false when the user already
// had a receipt of that kind.
func (r *messageRepository) AddReceipt(ctx context.Context, receipt *domain.Receipt) (bool, error) {
	const query = `
        INSERT INTO message_receipts (message_id, user_id, kind)
        VALUES ($1,$2,$3)
        ON CONFLICT DO NOTHING
        RETURNING at`
	err := r.pool.QueryRow(ctx, query, receipt.MessageID, receipt.UserID, receipt.Kind).Scan(&receipt.At)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAll removes every message and clears ticket message lists.
func (r *messageRepository) DeleteAll(ctx context.Context) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `UPDATE tickets SET message_ids='{}' WHERE cardinality(message_ids) > 0`); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *messageRepository) attachReceipts(ctx context.Context, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	index := make(map[string]int, len(messages))
	ids := make([]string, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
		index[messages[i].ID] = i
	}

	const query = `
        SELECT message_id, user_id, kind, at
        FROM message_receipts WHERE message_id = ANY($1)
        ORDER BY at ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var receipt domain.Receipt
		if err := rows.Scan(&receipt.MessageID, &receipt.UserID, &receipt.Kind, &receipt.At); err != nil {
			return err
		}
		if i, ok := index[receipt.MessageID]; ok {
			messages[i].AddReceipt(receipt)
		}
	}
	return rows.Err()
}

func (f MessageFilter) where() (string, []any) {
	args := []any{f.ChatType}
	clauses := []string{"m.chat_type=$1"}

	if f.TicketID != nil {
		args = append(args, *f.TicketID)
		clauses = append(clauses, fmt.Sprintf("m.ticket_id=$%d", len(args)))
	}
	if f.VisibleTo != nil {
		args = append(args, *f.VisibleTo)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses,
			fmt.Sprintf("(m.sender_id=%s OR m.role='%s')", placeholder, domain.RoleAdmin),
			fmt.Sprintf("(m.ticket_id IS NULL OR t.user_id=%s)", placeholder),
		)
	}
	return strings.Join(clauses, " AND "), args
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		msg            domain.Message
		replySenderID  *string
		replyContent   *string
		replyDeleted   *bool
		attachmentName string
		attachmentURL  string
	)
	if err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.Role,
		&msg.Content,
		&msg.ChatType,
		&msg.TicketID,
		&msg.ReplyToID,
		&replySenderID,
		&replyContent,
		&replyDeleted,
		&attachmentName,
		&attachmentURL,
		&msg.Edited,
		&msg.Deleted,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if msg.ReplyToID != nil && replyContent != nil {
		ref := &domain.MessageRef{ID: *msg.ReplyToID, Content: *replyContent}
		if replySenderID != nil {
			ref.SenderID = *replySenderID
		}
		if replyDeleted != nil {
			ref.Deleted = *replyDeleted
		}
		msg.ReplyTo = ref
	}
	if attachmentURL != "" {
		msg.Attachment = &domain.Attachment{Name: attachmentName, URL: attachmentURL}
	}
	msg.ReadBy = []domain.Receipt{}
	msg.DeliveredTo = []domain.Receipt{}
	return &msg, nil
}
