package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/storage"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*domain.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	users   *fakeUserRepo
	tickets map[string]*domain.Ticket
	seq     int
}

func newFakeTicketRepo(users *fakeUserRepo) *fakeTicketRepo {
	return &fakeTicketRepo{users: users, tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Unix(int64(r.seq), 0)
	ticket.UpdatedAt = ticket.CreatedAt
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTicketRepo) filter(keep func(*domain.Ticket) bool) []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Ticket{}
	for _, t := range r.tickets {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeTicketRepo) ListByUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return r.filter(func(t *domain.Ticket) bool { return t.UserID == userID }), nil
}

func (r *fakeTicketRepo) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	return r.filter(func(t *domain.Ticket) bool { return true }), nil
}

func (r *fakeTicketRepo) ListAssigned(ctx context.Context, adminID string) ([]domain.Ticket, error) {
	return r.filter(func(t *domain.Ticket) bool {
		return t.AssignedAdminID != nil && *t.AssignedAdminID == adminID
	}), nil
}

func (r *fakeTicketRepo) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	return nil
}

func (r *fakeTicketRepo) Assign(ctx context.Context, id, adminID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.AssignedAdminID = &adminID
	return nil
}

func (r *fakeTicketRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *fakeTicketRepo) Stats(ctx context.Context) (domain.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s domain.TicketStats
	for _, t := range r.tickets {
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

func (r *fakeTicketRepo) appendMessage(ticketID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.MessageIDs = append(t.MessageIDs, messageID)
	return nil
}

func (r *fakeTicketRepo) ownerOf(ticketID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tickets[ticketID]; ok {
		return t.UserID
	}
	return ""
}

type fakeHistoryRepo struct {
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, h *domain.TicketHistory) error {
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now()
	r.entries = append(r.entries, *h)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	out := []domain.TicketHistory{}
	for _, h := range r.entries {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	tickets  *fakeTicketRepo
	order    []string
	messages map[string]*domain.Message
	seq      int
}

func newFakeMessageRepo(tickets *fakeTicketRepo) *fakeMessageRepo {
	return &fakeMessageRepo{tickets: tickets, messages: map[string]*domain.Message{}}
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ChatType == domain.ChatTypeTicket && msg.TicketID != nil {
		if r.tickets.ownerOf(*msg.TicketID) == "" {
			return pgx.ErrNoRows
		}
	}
	r.mu.Lock()
	r.seq++
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Unix(int64(r.seq), 0)
	msg.UpdatedAt = msg.CreatedAt
	msg.ReadBy = []domain.Receipt{{MessageID: msg.ID, UserID: msg.SenderID, Kind: domain.ReceiptRead, At: msg.CreatedAt}}
	msg.DeliveredTo = []domain.Receipt{}
	cp := *msg
	cp.ReadBy = append([]domain.Receipt{}, msg.ReadBy...)
	r.messages[msg.ID] = &cp
	r.order = append(r.order, msg.ID)
	r.mu.Unlock()

	if msg.ChatType == domain.ChatTypeTicket && msg.TicketID != nil {
		return r.tickets.appendMessage(*msg.TicketID, msg.ID)
	}
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *m
	cp.ReadBy = append([]domain.Receipt{}, m.ReadBy...)
	cp.DeliveredTo = append([]domain.Receipt{}, m.DeliveredTo...)
	return &cp, nil
}

func (r *fakeMessageRepo) matches(m *domain.Message, f repository.MessageFilter) bool {
	if m.ChatType != f.ChatType {
		return false
	}
	if f.TicketID != nil && (m.TicketID == nil || *m.TicketID != *f.TicketID) {
		return false
	}
	if f.VisibleTo != nil {
		if m.SenderID != *f.VisibleTo && m.Role != domain.RoleAdmin {
			return false
		}
		if m.TicketID != nil && r.tickets.ownerOf(*m.TicketID) != *f.VisibleTo {
			return false
		}
	}
	return true
}

func (r *fakeMessageRepo) List(ctx context.Context, f repository.MessageFilter) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Message{}
	for _, id := range r.order {
		if m := r.messages[id]; r.matches(m, f) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[msg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	m.Content = msg.Content
	m.Edited = msg.Edited
	m.Deleted = msg.Deleted
	return nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, f repository.MessageFilter, readerID string) ([]domain.MessageReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.MessageReceipt{}
	for _, id := range r.order {
		m := r.messages[id]
		if !r.matches(m, f) {
			continue
		}
		rc := domain.Receipt{MessageID: m.ID, UserID: readerID, Kind: domain.ReceiptRead, At: time.Now()}
		if m.AddReceipt(rc) {
			out = append(out, domain.ReceiptFor(rc, m))
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) AddReceipt(ctx context.Context, rc *domain.Receipt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[rc.MessageID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	rc.At = time.Now()
	return m.AddReceipt(*rc), nil
}

func (r *fakeMessageRepo) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.messages))
	r.messages = map[string]*domain.Message{}
	r.order = nil
	return n, nil
}

type fakeStore struct {
	puts    []storage.Stored
	deletes []string
	failPut bool
}

func (s *fakeStore) Put(ctx context.Context, kind storage.Kind, obj storage.Object) (storage.Stored, error) {
	if s.failPut {
		return storage.Stored{}, errors.New("store down")
	}
	if obj.Body != nil {
		_, _ = io.Copy(io.Discard, obj.Body)
	}
	key := string(kind) + "/" + obj.Name
	stored := storage.Stored{Key: key, Name: obj.Name, URL: "/uploads/" + key}
	s.puts = append(s.puts, stored)
	return stored, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.deletes = append(s.deletes, key)
	return nil
}

type recordingDispatcher struct {
	events.Dispatcher
	mu   sync.Mutex
	seen []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher()}
}

func (d *recordingDispatcher) Publish(ctx context.Context, e events.Event) error {
	d.mu.Lock()
	d.seen = append(d.seen, e)
	d.mu.Unlock()
	return d.Dispatcher.Publish(ctx, e)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, len(d.seen))
	for i, e := range d.seen {
		out[i] = e.Type
	}
	return out
}

func (d *recordingDispatcher) last() events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[len(d.seen)-1]
}

type fixture struct {
	users      *fakeUserRepo
	tickets    *fakeTicketRepo
	messages   *fakeMessageRepo
	history    *fakeHistoryRepo
	store      *fakeStore
	dispatcher *recordingDispatcher
	ticketSvc  *TicketService
	chatSvc    *ChatService

	alice *domain.User
	bob   *domain.User
	admin *domain.User
	other *domain.User
}

func newFixture() *fixture {
	alice := &domain.User{ID: uuid.NewString(), Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser}
	bob := &domain.User{ID: uuid.NewString(), Name: "Bob", Email: "bob@example.com", Role: domain.RoleUser}
	admin := &domain.User{ID: uuid.NewString(), Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin}
	other := &domain.User{ID: uuid.NewString(), Name: "Grace", Email: "grace@example.com", Role: domain.RoleAdmin}

	users := newFakeUserRepo(alice, bob, admin, other)
	tickets := newFakeTicketRepo(users)
	messages := newFakeMessageRepo(tickets)
	history := &fakeHistoryRepo{}
	store := &fakeStore{}
	dispatcher := newRecordingDispatcher()

	return &fixture{
		users:      users,
		tickets:    tickets,
		messages:   messages,
		history:    history,
		store:      store,
		dispatcher: dispatcher,
		ticketSvc: NewTicketService(TicketDependencies{
			TicketRepo:  tickets,
			UserRepo:    users,
			HistoryRepo: history,
			Storage:     store,
			Dispatcher:  dispatcher,
		}),
		chatSvc: NewChatService(ChatDependencies{
			MessageRepo: messages,
			TicketRepo:  tickets,
			Storage:     store,
			Dispatcher:  dispatcher,
		}),
		alice: alice,
		bob:   bob,
		admin: admin,
		other: other,
	}
}
