package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/school-support/internal/domain"
)

// MemoryStore keeps users, tickets and archives in process memory. Reads return copies.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	tickets  map[string]domain.Ticket
	archives []domain.ArchiveRecord
	now      func() time.Time

	// FailArchive, when set, is returned by MoveToArchive before anything is written.
	FailArchive func(rec *domain.ArchiveRecord) error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		tickets: make(map[string]domain.Ticket),
		now:     time.Now,
	}
}

// Users returns the user repository view.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Tickets returns the ticket repository view.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Archives returns the archive repository view.
func (s *MemoryStore) Archives() ArchiveRepository { return memoryArchives{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, ok := r.s.users[user.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return ErrDuplicate
		}
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	updated := *user
	updated.Username = existing.Username
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = r.s.now()
	r.s.users[user.ID] = updated
	user.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	users := []domain.User{}
	for _, user := range r.s.users {
		if filter.ActiveOnly && !user.Active {
			continue
		}
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, user.Role) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(user.Username), search) &&
			!strings.Contains(strings.ToLower(user.DisplayName), search) {
			continue
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Role != users[j].Role {
			return users[i].Role < users[j].Role
		}
		return users[i].Username < users[j].Username
	})
	return page(users, filter.Limit, filter.Offset), nil
}

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if _, ok := r.s.tickets[ticket.ID]; ok {
		return ErrDuplicate
	}
	r.s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	updated := cloneTicket(ticket)
	updated.CreatorID = existing.CreatorID
	updated.Description = existing.Description
	updated.CreatedAt = existing.CreatedAt
	r.s.tickets[ticket.ID] = updated
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTicket(&ticket)
	return &out, nil
}

func (r memoryTickets) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tickets := []domain.Ticket{}
	for _, ticket := range r.s.tickets {
		if filter.matchesTicket(&ticket) {
			tickets = append(tickets, cloneTicket(&ticket))
		}
	}
	sortTicketsNewestFirst(tickets)
	return page(tickets, filter.Limit, filter.Offset), nil
}

func (r memoryTickets) CountOpenByUser(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, ticket := range r.s.tickets {
		if ticket.Status.IsTerminal() {
			continue
		}
		if ticket.CreatorID == userID || ticket.IsAssignedTo(userID) {
			count++
		}
	}
	return count, nil
}

func (r memoryTickets) CountByCategory(_ context.Context) ([]CategoryCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	totals := map[string]int{}
	for _, ticket := range r.s.tickets {
		if ticket.Status != domain.StatusResolved {
			totals[ticket.MainCategory]++
		}
	}
	counts := make([]CategoryCount, 0, len(totals))
	for name, n := range totals {
		counts = append(counts, CategoryCount{MainCategory: name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].MainCategory < counts[j].MainCategory
	})
	return counts, nil
}

func (r memoryTickets) CountByPriority(_ context.Context) ([]PriorityCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	totals := map[domain.TicketPriority]int{}
	for _, ticket := range r.s.tickets {
		if ticket.Status != domain.StatusResolved {
			totals[ticket.Priority]++
		}
	}
	counts := make([]PriorityCount, 0, len(totals))
	for p, n := range totals {
		counts = append(counts, PriorityCount{Priority: p, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Priority < counts[j].Priority
	})
	return counts, nil
}

func (r memoryTickets) CountResolvedByAssignee(_ context.Context) ([]AssigneeCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := []AssigneeCount{}
	for _, user := range r.s.users {
		if !user.Active || !user.Role.CanWorkTickets() {
			continue
		}
		c := AssigneeCount{UserID: user.ID, DisplayName: user.DisplayName}
		for _, ticket := range r.s.tickets {
			if ticket.Status == domain.StatusResolved && ticket.IsAssignedTo(user.ID) {
				c.Resolved++
			}
		}
		counts = append(counts, c)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Resolved != counts[j].Resolved {
			return counts[i].Resolved > counts[j].Resolved
		}
		return counts[i].DisplayName < counts[j].DisplayName
	})
	return counts, nil
}

type memoryArchives struct{ s *MemoryStore }

func (r memoryArchives) MoveToArchive(_ context.Context, rec *domain.ArchiveRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailArchive != nil {
		if err := r.s.FailArchive(rec); err != nil {
			return err
		}
	}
	ticket, ok := r.s.tickets[rec.OriginalTicketID]
	if !ok || !ticket.Status.IsTerminal() {
		return ErrNotArchivable
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	r.s.archives = append(r.s.archives, *rec)
	delete(r.s.tickets, rec.OriginalTicketID)
	return nil
}

func (r memoryArchives) List(_ context.Context, filter ArchiveFilter) ([]domain.ArchiveRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	keyword := strings.ToLower(strings.TrimSpace(filter.Keyword))
	records := []domain.ArchiveRecord{}
	for i := len(r.s.archives) - 1; i >= 0; i-- {
		rec := r.s.archives[i]
		if keyword != "" && !strings.Contains(strings.ToLower(rec.Summary), keyword) {
			continue
		}
		records = append(records, rec)
	}
	return page(records, filter.Limit, filter.Offset), nil
}

func cloneTicket(t *domain.Ticket) domain.Ticket {
	out := *t
	out.Remarks = append(domain.RemarkLog{}, t.Remarks...)
	if t.AssigneeID != nil {
		v := *t.AssigneeID
		out.AssigneeID = &v
	}
	if t.AISummary != nil {
		v := *t.AISummary
		out.AISummary = &v
	}
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		out.ResolvedAt = &v
	}
	return out
}

func sortTicketsNewestFirst(tickets []domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		if !tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
		}
		return tickets[i].ID < tickets[j].ID
	})
}

func containsRole(list []domain.Role, r domain.Role) bool {
	for _, candidate := range list {
		if candidate == r {
			return true
		}
	}
	return false
}
