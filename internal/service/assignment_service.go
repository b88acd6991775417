package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/events"
	"github.com/spec-kit/school-support/internal/lock"
	"github.com/spec-kit/school-support/internal/repository"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

// AssignmentService handles hand-offs between the leader's pool and technicians.
type AssignmentService struct {
	ticketWorkflow
	users repository.UserRepository
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TechnicianLoad is an assignable user with the number of open tickets they hold.
type TechnicianLoad struct {
	User        domain.User
	OpenTickets int
}

// NewAssignmentService creates the service.
func NewAssignmentService(cfg TicketConfig, deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		ticketWorkflow: newTicketWorkflow(deps.TicketRepo, deps.Locker, deps.Dispatcher, deps.Logger, cfg),
		users:          deps.UserRepo,
	}
}

// Assign hands a pooled ticket to a technician.
// The technician's user lock is held across the check and the write so
// DeactivateUser cannot slip in between.
func (s *AssignmentService) Assign(ctx context.Context, actor domain.Actor, ticketID, technicianID string) (*domain.Ticket, error) {
	unlock, err := s.lockUser(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	technician, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"user_id": technicianID})
		}
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("load technician %s: %w", technicianID, err))
	}

	var old domain.TicketStatus
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) error {
		old = t.Status
		return t.Assign(actor, technician, s.label(actor.Role), s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("assignee_id", technician.ID))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketAssignedPayload{
			AssigneeID:   technician.ID,
			AssigneeName: technician.DisplayName,
		},
	})
	s.publishStatusChange(ctx, actor, ticket, old, "")
	return ticket, nil
}

// RequestReassignment returns a ticket to the pool with a reason.
func (s *AssignmentService) RequestReassignment(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Ticket, error) {
	var old domain.TicketStatus
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) error {
		old = t.Status
		return t.RequestReassignment(actor, reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, actor, ticket, old, reason)
	return ticket, nil
}

// ListTechnicians returns the active users a leader can assign to, least loaded first.
func (s *AssignmentService) ListTechnicians(ctx context.Context, actor domain.Actor) ([]TechnicianLoad, error) {
	if actor.Role != domain.RoleLeader && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("leader role required")
	}
	users, err := s.users.List(ctx, repository.UserFilter{
		Roles:      []domain.Role{domain.RoleLeader, domain.RoleTechnician},
		ActiveOnly: true,
	})
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("list technicians: %w", err))
	}

	loads := make([]TechnicianLoad, 0, len(users))
	for _, user := range users {
		assignee := user.ID
		open, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
			AssigneeID:      &assignee,
			ExcludeStatuses: domain.TerminalStatuses(),
		})
		if err != nil {
			return nil, apperrors.NewPersistenceFailure(fmt.Errorf("count open tickets: %w", err))
		}
		loads = append(loads, TechnicianLoad{User: user, OpenTickets: len(open)})
	}
	sort.SliceStable(loads, func(i, j int) bool {
		return loads[i].OpenTickets < loads[j].OpenTickets
	})
	return loads, nil
}
