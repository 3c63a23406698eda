package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// fakeTicketRepo mirrors the storage contract, including the partial unique
// index (one non-closed ticket per contact per company) and the
// compare-and-swap claim.
type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int64
	tickets map[int64]*domain.Ticket
	// updateErr injects a per-ticket failure into UpdateStatus.
	updateErr map[int64]error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:   make(map[int64]*domain.Ticket),
		updateErr: make(map[int64]error),
	}
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	if t.QueueID != nil {
		q := *t.QueueID
		clone.QueueID = &q
	}
	if t.UserID != nil {
		u := *t.UserID
		clone.UserID = &u
	}
	return &clone
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tickets {
		if existing.ContactID == ticket.ContactID &&
			existing.CompanyID == ticket.CompanyID &&
			existing.Status != domain.TicketStatusClosed {
			return repository.ErrOpenTicketExists
		}
	}
	r.seq++
	ticket.ID = r.seq
	r.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id, companyID int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.CompanyID != companyID {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(ticket), nil
}

func (r *fakeTicketRepo) FindOpenByContact(_ context.Context, contactID, companyID int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ContactID == contactID &&
			ticket.CompanyID == companyID &&
			ticket.Status != domain.TicketStatusClosed {
			return copyTicket(ticket), nil
		}
	}
	return nil, nil
}

func (r *fakeTicketRepo) UpdateStatus(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateErr[ticket.ID]; err != nil {
		return err
	}
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.CompanyID != ticket.CompanyID {
		return pgx.ErrNoRows
	}
	stored.Status = ticket.Status
	stored.UserID = ticket.UserID
	stored.QueueID = ticket.QueueID
	return nil
}

func (r *fakeTicketRepo) Claim(_ context.Context, id, companyID, userID int64, queueID *int64, status domain.TicketStatus) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok || stored.CompanyID != companyID || stored.UserID != nil || stored.Status != domain.TicketStatusPending {
		return nil, repository.ErrTicketClaimed
	}
	stored.UserID = &userID
	if queueID != nil {
		stored.QueueID = queueID
	}
	stored.Status = status
	return copyTicket(stored), nil
}

func (r *fakeTicketRepo) Reassign(_ context.Context, id, companyID int64, userID, queueID *int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok || stored.CompanyID != companyID {
		return nil, pgx.ErrNoRows
	}
	stored.UserID = userID
	stored.QueueID = queueID
	return copyTicket(stored), nil
}

func (r *fakeTicketRepo) RecordInbound(_ context.Context, id, companyID int64, body string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok || stored.CompanyID != companyID {
		return nil, pgx.ErrNoRows
	}
	stored.LastMessage = body
	stored.UnreadMessages++
	return copyTicket(stored), nil
}

func (r *fakeTicketRepo) ClearUnread(_ context.Context, id, companyID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok || stored.CompanyID != companyID {
		return pgx.ErrNoRows
	}
	stored.UnreadMessages = 0
	return nil
}

func (r *fakeTicketRepo) ListByStatus(_ context.Context, companyID int64, statuses []domain.TicketStatus, queueIDs []int64) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.CompanyID != companyID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, ticket.Status) {
			continue
		}
		if len(queueIDs) > 0 && (ticket.QueueID == nil || !containsID(queueIDs, *ticket.QueueID)) {
			continue
		}
		result = append(result, *copyTicket(ticket))
	}
	return result, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// nonClosedCount reports how many non-closed tickets exist for a contact.
func (r *fakeTicketRepo) nonClosedCount(contactID, companyID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, ticket := range r.tickets {
		if ticket.ContactID == contactID &&
			ticket.CompanyID == companyID &&
			ticket.Status != domain.TicketStatusClosed {
			count++
		}
	}
	return count
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int64]*domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = int64(len(r.users) + 1)
	r.users[user.ID] = user
	return nil
}

type fakeQueueRepo struct {
	queues map[int64]*domain.Queue
}

func newFakeQueueRepo(queues ...*domain.Queue) *fakeQueueRepo {
	repo := &fakeQueueRepo{queues: make(map[int64]*domain.Queue)}
	for _, queue := range queues {
		repo.queues[queue.ID] = queue
	}
	return repo
}

func (r *fakeQueueRepo) GetByID(_ context.Context, id, companyID int64) (*domain.Queue, error) {
	queue, ok := r.queues[id]
	if !ok || queue.CompanyID != companyID {
		return nil, pgx.ErrNoRows
	}
	clone := *queue
	return &clone, nil
}

func (r *fakeQueueRepo) ListByCompany(_ context.Context, companyID int64) ([]domain.Queue, error) {
	var result []domain.Queue
	for _, queue := range r.queues {
		if queue.CompanyID == companyID {
			result = append(result, *queue)
		}
	}
	return result, nil
}

// fakeContactRepo keeps the (number, company) uniqueness of the real table.
type fakeContactRepo struct {
	mu       sync.Mutex
	seq      int64
	contacts map[string]*domain.Contact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]*domain.Contact)}
}

func contactMapKey(number string, companyID int64) string {
	return number + "|" + strconv.FormatInt(companyID, 10)
}

func (r *fakeContactRepo) FindOrCreate(_ context.Context, contact *domain.Contact) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := contactMapKey(contact.Number, contact.CompanyID)
	if existing, ok := r.contacts[key]; ok {
		*contact = *existing
		return false, nil
	}
	r.seq++
	contact.ID = r.seq
	contact.Active = true
	clone := *contact
	r.contacts[key] = &clone
	return true, nil
}

func (r *fakeContactRepo) GetByID(_ context.Context, id, companyID int64) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, contact := range r.contacts {
		if contact.ID == id && contact.CompanyID == companyID {
			clone := *contact
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeContactRepo) UpdateName(_ context.Context, id, companyID int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, contact := range r.contacts {
		if contact.ID == id && contact.CompanyID == companyID {
			contact.Name = name
			return nil
		}
	}
	return pgx.ErrNoRows
}

// farewellRecorder records SendFarewell invocations.
type farewellRecorder struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (f *farewellRecorder) SendFarewell(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ticket.ID)
	return f.err
}

func (f *farewellRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
