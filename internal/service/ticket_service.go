package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/events"
	"github.com/spec-kit/school-support/internal/lock"
	"github.com/spec-kit/school-support/internal/repository"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

// Triage is the classification pipeline consumed by ticket workflows.
// Every method answers; failures are replaced by fallbacks inside the pipeline.
type Triage interface {
	SelfHelp(ctx context.Context, description string) string
	AutoTag(ctx context.Context, description string) domain.Tags
	Summarize(ctx context.Context, description, remarks string) string
}

// SelfHelpConfirm asks the requester whether the suggestion fixed the problem.
type SelfHelpConfirm func(ctx context.Context, suggestion string) (bool, error)

// Answered returns a SelfHelpConfirm with a fixed answer, for callers that
// collected it before the ticket was created.
func Answered(resolved bool) SelfHelpConfirm {
	return func(context.Context, string) (bool, error) { return resolved, nil }
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	ticketWorkflow
	users  repository.UserRepository
	triage Triage
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Triage     Triage
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload. Suggestion carries a
// self-help answer already shown to the requester; when empty the pipeline is asked.
type TicketCreateInput struct {
	Description string
	Location    string
	Suggestion  string
}

// NewTicketService constructs the service.
func NewTicketService(cfg TicketConfig, deps TicketDependencies) *TicketService {
	return &TicketService{
		ticketWorkflow: newTicketWorkflow(deps.TicketRepo, deps.Locker, deps.Dispatcher, deps.Logger, cfg),
		users:          deps.UserRepo,
		triage:         deps.Triage,
	}
}

// SuggestSelfHelp runs only the self-help phase for a draft description.
func (s *TicketService) SuggestSelfHelp(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", apperrors.NewValidationError(domain.ErrEmptyDescription.Error(), nil)
	}
	return s.triage.SelfHelp(ctx, description), nil
}

// CreateTicket raises a ticket. When confirm reports the suggestion worked the
// ticket is stored already Resolved; otherwise it waits in the pool as New.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput, confirm SelfHelpConfirm) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError(domain.ErrEmptyDescription.Error(), nil)
	}
	if err := s.requireActive(ctx, actor); err != nil {
		return nil, err
	}

	suggestion := strings.TrimSpace(input.Suggestion)
	if suggestion == "" {
		suggestion = s.triage.SelfHelp(ctx, input.Description)
	}
	selfResolved := false
	if confirm != nil {
		var err error
		if selfResolved, err = confirm(ctx, suggestion); err != nil {
			return nil, err
		}
	}

	tags := s.triage.AutoTag(ctx, input.Description)
	now := s.now()

	var (
		ticket *domain.Ticket
		err    error
	)
	if selfResolved {
		ticket, err = domain.NewSelfResolvedTicket(actor, input.Description, input.Location, tags, now)
	} else {
		ticket, err = domain.NewTicket(actor, input.Description, input.Location, tags, now)
	}
	if err != nil {
		return nil, mapDomainError(nil, err)
	}
	ticket.ID = uuid.NewString()

	if err := s.persistNew(ctx, actor, ticket); err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("status", ticket.Status.String()),
		zap.String("main_category", ticket.MainCategory),
		zap.String("priority", string(ticket.Priority)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketCreatedPayload{
			MainCategory: ticket.MainCategory,
			SubCategory:  ticket.SubCategory,
			Priority:     ticket.Priority,
			Status:       ticket.Status,
			SelfResolved: selfResolved,
		},
	})
	return ticket, nil
}

// Progress moves a ticket to In Progress with a work note.
func (s *TicketService) Progress(ctx context.Context, actor domain.Actor, ticketID, note string) (*domain.Ticket, error) {
	var old domain.TicketStatus
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) error {
		old = t.Status
		return t.StartProgress(actor, s.label(actor.Role), note, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, ticket, old, note)
	return ticket, nil
}

// Resolve closes a ticket. The resolution note is appended before the summary
// is requested so the summary covers the whole log.
func (s *TicketService) Resolve(ctx context.Context, actor domain.Actor, ticketID, note string) (*domain.Ticket, error) {
	var old domain.TicketStatus
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) error {
		old = t.Status
		if err := t.CheckWorkAccess("resolve", actor); err != nil {
			return err
		}
		if strings.TrimSpace(note) == "" {
			return domain.ErrEmptyNote
		}
		now := s.now()
		remark := t.ResolutionRemark(s.label(actor.Role), note, now)
		summary := s.triage.Summarize(ctx, t.Description, t.Remarks.With(remark).String())
		return t.Resolve(actor, remark, summary, now)
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, ticket, old, note)
	return ticket, nil
}

// Remark appends a note without changing status.
func (s *TicketService) Remark(ctx context.Context, actor domain.Actor, ticketID, note string) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) error {
		return t.AddRemark(actor, s.label(actor.Role), note, s.now())
	})
	if err != nil {
		return nil, err
	}
	last := ticket.Remarks[len(ticket.Remarks)-1]
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketRemarkAdded,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload:  events.TicketRemarkAddedPayload{Author: last.Author, Text: last.Text},
	})
	return ticket, nil
}

// Cancel withdraws an open ticket on behalf of its creator.
func (s *TicketService) Cancel(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	var old domain.TicketStatus
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) error {
		old = t.Status
		return t.Cancel(actor, s.label(actor.Role), s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, ticket, old, "")
	return ticket, nil
}

// GetTicket returns a ticket the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.CanView(actor) {
		return nil, apperrors.NewForbidden("ticket not visible to caller")
	}
	return ticket, nil
}

// ListMyTickets returns the tickets the actor raised, newest first.
func (s *TicketService) ListMyTickets(ctx context.Context, actor domain.Actor, opts ListOptions) ([]domain.Ticket, error) {
	creator := actor.UserID
	return s.list(ctx, repository.TicketFilter{CreatorID: &creator, Limit: opts.Limit, Offset: opts.Offset})
}

// ListWorkQueue returns open work: a technician's own tickets, or every open ticket for a leader.
func (s *TicketService) ListWorkQueue(ctx context.Context, actor domain.Actor, opts ListOptions) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		ExcludeStatuses: domain.TerminalStatuses(),
		Limit:           opts.Limit,
		Offset:          opts.Offset,
	}
	switch actor.Role {
	case domain.RoleTechnician:
		assignee := actor.UserID
		filter.AssigneeID = &assignee
	case domain.RoleLeader:
	case domain.RoleAdmin, domain.RoleStaff:
		return nil, apperrors.NewForbidden("work queue requires a leader or technician")
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	return s.list(ctx, filter)
}

// ListPool returns tickets waiting for assignment.
func (s *TicketService) ListPool(ctx context.Context, actor domain.Actor, opts ListOptions) ([]domain.Ticket, error) {
	if actor.Role != domain.RoleLeader {
		return nil, apperrors.NewForbidden("leader role required")
	}
	return s.list(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.StatusNew, domain.StatusReassignRequested},
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// ListAllTickets returns every active ticket, optionally narrowed to statuses.
func (s *TicketService) ListAllTickets(ctx context.Context, actor domain.Actor, statuses []domain.TicketStatus, opts ListOptions) ([]domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	return s.list(ctx, repository.TicketFilter{Statuses: statuses, Limit: opts.Limit, Offset: opts.Offset})
}

func (s *TicketService) list(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("list tickets: %w", err))
	}
	return tickets, nil
}

// persistNew stores a fresh ticket. The creator is re-checked under their user
// lock so a concurrent deactivation cannot leave them owning an open ticket.
func (s *TicketService) persistNew(ctx context.Context, actor domain.Actor, ticket *domain.Ticket) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	unlock, err := s.lockUser(storeCtx, actor.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.requireActive(storeCtx, actor); err != nil {
		return err
	}
	if err := s.tickets.Create(storeCtx, ticket); err != nil {
		return apperrors.NewPersistenceFailure(fmt.Errorf("create ticket: %w", err))
	}
	return nil
}

func (s *TicketService) requireActive(ctx context.Context, actor domain.Actor) error {
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("unknown user")
		}
		return apperrors.NewPersistenceFailure(err)
	}
	if !user.Active {
		return apperrors.NewForbidden("account is deactivated")
	}
	return nil
}
