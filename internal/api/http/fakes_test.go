package http

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/storage"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (r *memUsers) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUsers) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.User{}
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memTickets struct {
	mu      sync.Mutex
	users   *memUsers
	tickets map[string]*domain.Ticket
}

func (r *memTickets) Create(ctx context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.tickets[t.ID] = &cp
	return nil
}

func (r *memTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tickets[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *memTickets) list(keep func(*domain.Ticket) bool) []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Ticket{}
	for _, t := range r.tickets {
		if keep(t) {
			out = append(out, *t)
		}
	}
	return out
}

func (r *memTickets) ListByUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return r.list(func(t *domain.Ticket) bool { return t.UserID == userID }), nil
}

func (r *memTickets) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	return r.list(func(*domain.Ticket) bool { return true }), nil
}

func (r *memTickets) ListAssigned(ctx context.Context, adminID string) ([]domain.Ticket, error) {
	return r.list(func(t *domain.Ticket) bool {
		return t.AssignedAdminID != nil && *t.AssignedAdminID == adminID
	}), nil
}

func (r *memTickets) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	return nil
}

func (r *memTickets) Assign(ctx context.Context, id, adminID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.AssignedAdminID = &adminID
	return nil
}

func (r *memTickets) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *memTickets) Stats(ctx context.Context) (domain.TicketStats, error) {
	var s domain.TicketStats
	for _, t := range r.list(func(*domain.Ticket) bool { return true }) {
		switch t.Status {
		case domain.TicketStatusOpen:
			s.Open++
		case domain.TicketStatusInProgress:
			s.InProgress++
		case domain.TicketStatusResolved:
			s.Resolved++
		}
	}
	return s, nil
}

type memHistory struct{}

func (memHistory) Create(ctx context.Context, h *domain.TicketHistory) error { return nil }
func (memHistory) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return []domain.TicketHistory{}, nil
}

// memMessages keeps messages in insertion order and ignores visibility
// filters beyond chat type and ticket.
type memMessages struct {
	mu      sync.Mutex
	tickets *memTickets
	msgs    []*domain.Message
}

func (r *memMessages) Create(ctx context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now()
	m.ReadBy = []domain.Receipt{{MessageID: m.ID, UserID: m.SenderID, Kind: domain.ReceiptRead, At: m.CreatedAt}}
	cp := *m
	r.msgs = append(r.msgs, &cp)
	return nil
}

func (r *memMessages) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memMessages) List(ctx context.Context, f repository.MessageFilter) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Message{}
	for _, m := range r.msgs {
		if m.ChatType != f.ChatType {
			continue
		}
		if f.TicketID != nil && (m.TicketID == nil || *m.TicketID != *f.TicketID) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *memMessages) Update(ctx context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.msgs {
		if existing.ID == m.ID {
			cp := *m
			r.msgs[i] = &cp
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memMessages) MarkRead(ctx context.Context, f repository.MessageFilter, readerID string) ([]domain.MessageReceipt, error) {
	return []domain.MessageReceipt{}, nil
}

func (r *memMessages) AddReceipt(ctx context.Context, receipt *domain.Receipt) (bool, error) {
	return true, nil
}

func (r *memMessages) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.msgs))
	r.msgs = nil
	return n, nil
}

type memStore struct {
	mu   sync.Mutex
	puts []storage.Stored
	body []byte
}

func (s *memStore) Put(ctx context.Context, kind storage.Kind, obj storage.Object) (storage.Stored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return storage.Stored{}, err
	}
	s.body = data
	key := string(kind) + "/" + obj.Name
	stored := storage.Stored{Key: key, Name: obj.Name, URL: "/uploads/" + key}
	s.puts = append(s.puts, stored)
	return stored, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error { return nil }
