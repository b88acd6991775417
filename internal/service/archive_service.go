package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/events"
	"github.com/spec-kit/school-support/internal/lock"
	"github.com/spec-kit/school-support/internal/repository"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

// Archive presets offered to administrators.
const (
	ArchivePresetHalfYear = 6
	ArchivePresetYear     = 12
	ArchivePresetAll      = 0
)

// archiveMonth is the length of one cutoff month.
const archiveMonth = 30 * 24 * time.Hour

// ArchiveService sweeps closed tickets into the archive.
type ArchiveService struct {
	ticketWorkflow
	archives repository.ArchiveRepository
}

// ArchiveDependencies bundles collaborators.
type ArchiveDependencies struct {
	TicketRepo  repository.TicketRepository
	ArchiveRepo repository.ArchiveRepository
	Locker      lock.Locker
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewArchiveService creates the service.
func NewArchiveService(cfg TicketConfig, deps ArchiveDependencies) *ArchiveService {
	return &ArchiveService{
		ticketWorkflow: newTicketWorkflow(deps.TicketRepo, deps.Locker, deps.Dispatcher, deps.Logger, cfg),
		archives:       deps.ArchiveRepo,
	}
}

// Archive moves every terminal ticket created more than months×30 days ago into
// the archive; months == 0 takes every terminal ticket. It stops at the first
// store failure and reports how many tickets were archived before it.
func (s *ArchiveService) Archive(ctx context.Context, months int) (int, error) {
	if months < 0 {
		return 0, apperrors.NewValidationError("months must not be negative", map[string]any{"months": months})
	}

	now := s.now()
	filter := repository.TicketFilter{Statuses: domain.TerminalStatuses()}
	if months > 0 {
		cutoff := now.Add(-time.Duration(months) * archiveMonth)
		filter.CreatedBefore = &cutoff
	}

	candidates, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return 0, apperrors.NewPersistenceFailure(fmt.Errorf("select archive candidates: %w", err))
	}

	archived := 0
	for i := range candidates {
		moved, err := s.archiveOne(ctx, &candidates[i], now)
		if err != nil {
			s.logger.Error("archive sweep aborted",
				zap.String("ticket_id", candidates[i].ID),
				zap.Int("archived", archived),
				zap.Error(err))
			return archived, err
		}
		if moved {
			archived++
		}
	}

	s.logger.Info("archive sweep finished",
		zap.Int("months", months),
		zap.Int("candidates", len(candidates)),
		zap.Int("archived", archived))
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTicketsArchived,
		Payload: events.TicketsArchivedPayload{Months: months, Archived: archived},
	})
	return archived, nil
}

func (s *ArchiveService) archiveOne(ctx context.Context, ticket *domain.Ticket, now time.Time) (bool, error) {
	unlock, err := s.locker.Lock(ctx, ticket.ID)
	if err != nil {
		return false, apperrors.NewInternalError(fmt.Errorf("lock ticket %s: %w", ticket.ID, err))
	}
	defer unlock()

	rec := domain.NewArchiveRecord(ticket, s.cfg.Location, now)
	if err := s.archives.MoveToArchive(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrNotArchivable) {
			s.logger.Info("ticket skipped by archive sweep", zap.String("ticket_id", ticket.ID))
			return false, nil
		}
		return false, apperrors.NewPersistenceFailure(fmt.Errorf("archive ticket %s: %w", ticket.ID, err))
	}
	return true, nil
}

// SearchArchive lists archive records whose summary contains keyword, newest first.
func (s *ArchiveService) SearchArchive(ctx context.Context, keyword string, opts ListOptions) ([]domain.ArchiveRecord, error) {
	records, err := s.archives.List(ctx, repository.ArchiveFilter{Keyword: keyword, Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("search archive: %w", err))
	}
	return records, nil
}
