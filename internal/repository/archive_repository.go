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

// ArchiveRepository stores compacted tickets.
type ArchiveRepository interface {
	// MoveToArchive writes rec and deletes its active ticket as one unit. It returns
	// ErrNotArchivable, with nothing written, when the ticket is gone or no longer terminal.
	MoveToArchive(ctx context.Context, rec *domain.ArchiveRecord) error
	List(ctx context.Context, filter ArchiveFilter) ([]domain.ArchiveRecord, error)
}

type archiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository returns a Postgres-backed implementation.
func NewArchiveRepository(pool *pgxpool.Pool) ArchiveRepository {
	return &archiveRepository{pool: pool}
}

func (r *archiveRepository) MoveToArchive(ctx context.Context, rec *domain.ArchiveRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
            INSERT INTO archived_tickets (id, original_ticket_id, summary, main_category, sub_category, year, final_status, archived_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
		if _, err := tx.Exec(ctx, insert,
			rec.ID,
			rec.OriginalTicketID,
			rec.Summary,
			rec.MainCategory,
			rec.SubCategory,
			rec.Year,
			rec.FinalStatus.String(),
			rec.ArchivedAt,
		); err != nil {
			return mapPgError(err)
		}

		const remove = `DELETE FROM tickets WHERE id=$1 AND status = ANY($2)`
		cmd, err := tx.Exec(ctx, remove, rec.OriginalTicketID, statusLabels(domain.TerminalStatuses()))
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotArchivable
		}
		return nil
	})
}

func (r *archiveRepository) List(ctx context.Context, filter ArchiveFilter) ([]domain.ArchiveRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		args = append(args, "%"+strings.ToLower(kw)+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(summary) LIKE $%d", len(args)))
	}

	query := fmt.Sprintf(`
        SELECT id, original_ticket_id, summary, main_category, sub_category, year, final_status, archived_at
        FROM archived_tickets WHERE %s ORDER BY archived_at DESC, id%s`,
		strings.Join(clauses, " AND "), limitClause(filter.Limit, filter.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.ArchiveRecord{}
	for rows.Next() {
		var (
			rec    domain.ArchiveRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.OriginalTicketID, &rec.Summary, &rec.MainCategory,
			&rec.SubCategory, &rec.Year, &status, &rec.ArchivedAt); err != nil {
			return nil, err
		}
		if rec.FinalStatus, err = domain.ParseTicketStatus(status); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
