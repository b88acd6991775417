package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/school-support/internal/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotArchivable is returned when a ticket vanished or reopened before it could be archived.
	ErrNotArchivable = errors.New("ticket not archivable")
)

// Store groups the repositories of one backend.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	Archives() ArchiveRepository
}

// PostgresStore exposes the pgx repositories over one pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Users returns the user repository view.
func (s *PostgresStore) Users() UserRepository { return NewUserRepository(s.pool) }

// Tickets returns the ticket repository view.
func (s *PostgresStore) Tickets() TicketRepository { return NewTicketRepository(s.pool) }

// Archives returns the archive repository view.
func (s *PostgresStore) Archives() ArchiveRepository { return NewArchiveRepository(s.pool) }

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// TicketFilter narrows ticket listings. A zero Limit returns every match.
type TicketFilter struct {
	CreatorID       *string
	AssigneeID      *string
	Statuses        []domain.TicketStatus
	ExcludeStatuses []domain.TicketStatus
	CreatedBefore   *time.Time
	Limit           int
	Offset          int
}

// UserFilter narrows user listings. Search matches username or display name.
type UserFilter struct {
	Search     string
	Roles      []domain.Role
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ArchiveFilter narrows archive listings. Keyword matches the summary.
type ArchiveFilter struct {
	Keyword string
	Limit   int
	Offset  int
}

// CategoryCount is the number of tickets under one main category.
type CategoryCount struct {
	MainCategory string
	Count        int
}

// PriorityCount is the number of tickets at one priority.
type PriorityCount struct {
	Priority domain.TicketPriority
	Count    int
}

// AssigneeCount is the number of resolved tickets held by one leader or technician.
type AssigneeCount struct {
	UserID      string
	DisplayName string
	Resolved    int
}

// matchesTicket applies f to t for stores that filter in Go.
func (f TicketFilter) matchesTicket(t *domain.Ticket) bool {
	if f.CreatorID != nil && t.CreatorID != *f.CreatorID {
		return false
	}
	if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if containsStatus(f.ExcludeStatuses, t.Status) {
		return false
	}
	if f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func statusLabels(list []domain.TicketStatus) []string {
	labels := make([]string, len(list))
	for i, s := range list {
		labels[i] = s.String()
	}
	return labels
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
