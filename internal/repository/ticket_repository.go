package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/school-support/internal/domain"
)

// TicketRepository encapsulates ticket persistence and the aggregate queries over it.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountOpenByUser(ctx context.Context, userID string) (int, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
	CountByPriority(ctx context.Context) ([]PriorityCount, error)
	CountResolvedByAssignee(ctx context.Context) ([]AssigneeCount, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, creator_id, assignee_id, main_category, sub_category, priority, description,
               location, remarks, ai_summary, status, created_at, resolved_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, creator_id, assignee_id, main_category, sub_category, priority, description,
            location, remarks, ai_summary, status, created_at, resolved_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.CreatorID,
		ticket.AssigneeID,
		ticket.MainCategory,
		ticket.SubCategory,
		string(ticket.Priority),
		ticket.Description,
		ticket.Location,
		remarksOrEmpty(ticket.Remarks),
		ticket.AISummary,
		ticket.Status.String(),
		ticket.CreatedAt,
		ticket.ResolvedAt,
		ticket.UpdatedAt,
	)
	return mapPgError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, main_category=$2, sub_category=$3, priority=$4, location=$5,
            remarks=$6, ai_summary=$7, status=$8, resolved_at=$9, updated_at=$10
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.AssigneeID,
		ticket.MainCategory,
		ticket.SubCategory,
		string(ticket.Priority),
		ticket.Location,
		remarksOrEmpty(ticket.Remarks),
		ticket.AISummary,
		ticket.Status.String(),
		ticket.ResolvedAt,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, statusLabels(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.ExcludeStatuses) > 0 {
		args = append(args, statusLabels(filter.ExcludeStatuses))
		clauses = append(clauses, fmt.Sprintf("NOT (status = ANY($%d))", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id%s`,
		ticketColumns, strings.Join(clauses, " AND "), limitClause(filter.Limit, filter.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountOpenByUser(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE (creator_id=$1 OR assignee_id=$1) AND status = ANY($2)`
	var count int
	err := r.pool.QueryRow(ctx, query, userID, statusLabels(domain.OpenStatuses())).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	const query = `
        SELECT main_category, COUNT(*) FROM tickets
        WHERE status <> $1
        GROUP BY main_category ORDER BY COUNT(*) DESC, main_category`
	rows, err := r.pool.Query(ctx, query, domain.StatusResolved.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.MainCategory, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountByPriority(ctx context.Context) ([]PriorityCount, error) {
	const query = `
        SELECT priority, COUNT(*) FROM tickets
        WHERE status <> $1
        GROUP BY priority ORDER BY COUNT(*) DESC, priority`
	rows, err := r.pool.Query(ctx, query, domain.StatusResolved.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []PriorityCount{}
	for rows.Next() {
		var (
			c        PriorityCount
			priority string
		)
		if err := rows.Scan(&priority, &c.Count); err != nil {
			return nil, err
		}
		c.Priority = domain.TicketPriority(priority)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountResolvedByAssignee(ctx context.Context) ([]AssigneeCount, error) {
	const query = `
        SELECT u.id, u.display_name, COUNT(t.id)
        FROM users u
        LEFT JOIN tickets t ON t.assignee_id = u.id AND t.status = $1
        WHERE u.role_id = ANY($2) AND u.is_active
        GROUP BY u.id, u.display_name
        ORDER BY COUNT(t.id) DESC, u.display_name`
	roles := []int{int(domain.RoleLeader), int(domain.RoleTechnician)}
	rows, err := r.pool.Query(ctx, query, domain.StatusResolved.String(), roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []AssigneeCount{}
	for rows.Next() {
		var c AssigneeCount
		if err := rows.Scan(&c.UserID, &c.DisplayName, &c.Resolved); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		priority string
		status   string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.CreatorID,
		&ticket.AssigneeID,
		&ticket.MainCategory,
		&ticket.SubCategory,
		&priority,
		&ticket.Description,
		&ticket.Location,
		&ticket.Remarks,
		&ticket.AISummary,
		&status,
		&ticket.CreatedAt,
		&ticket.ResolvedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	parsed, err := domain.ParseTicketStatus(status)
	if err != nil {
		return nil, err
	}
	ticket.Status = parsed
	ticket.Priority = domain.TicketPriority(priority)
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func remarksOrEmpty(remarks domain.RemarkLog) domain.RemarkLog {
	if remarks == nil {
		return domain.RemarkLog{}
	}
	return remarks
}
