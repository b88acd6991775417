package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/events"
	"github.com/spec-kit/school-support/internal/lock"
	"github.com/spec-kit/school-support/internal/repository"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

// TicketConfig carries presentation, clock and store settings injected into ticket workflows.
// StoreTimeout bounds each write independently of the caller's deadline, which
// classification may already have used up.
type TicketConfig struct {
	RoleLabels   domain.RoleLabels
	Location     *time.Location
	Now          func() time.Time
	StoreTimeout time.Duration
}

// DefaultTicketConfig returns the stock role labels on a UTC+8 wall clock.
func DefaultTicketConfig() TicketConfig {
	return TicketConfig{
		RoleLabels:   domain.DefaultRoleLabels(),
		Location:     time.FixedZone("HKT", 8*60*60),
		Now:          time.Now,
		StoreTimeout: 5 * time.Second,
	}
}

func (c TicketConfig) withDefaults() TicketConfig {
	def := DefaultTicketConfig()
	if c.RoleLabels == nil {
		c.RoleLabels = def.RoleLabels
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = def.StoreTimeout
	}
	return c
}

// ListOptions pages a listing. A zero Limit returns everything.
type ListOptions struct {
	Limit  int
	Offset int
}

// ticketWorkflow holds what every ticket-mutating service needs: the store,
// the per-ticket lock, the event fan-out and the clock.
type ticketWorkflow struct {
	tickets    repository.TicketRepository
	locker     lock.Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        TicketConfig
}

func newTicketWorkflow(tickets repository.TicketRepository, locker lock.Locker, dispatcher events.Dispatcher, logger *zap.Logger, cfg TicketConfig) ticketWorkflow {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return ticketWorkflow{
		tickets:    tickets,
		locker:     locker,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

func (w *ticketWorkflow) now() time.Time {
	return w.cfg.Now().In(w.cfg.Location)
}

func (w *ticketWorkflow) label(role domain.Role) string {
	return w.cfg.RoleLabels.Label(role)
}

// storeContext detaches a store call from the caller's cancellation and gives it
// its own deadline. Values such as request ids still flow through.
func (w *ticketWorkflow) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), w.cfg.StoreTimeout)
}

// lockUser serialises changes that depend on a user's active flag.
func (w *ticketWorkflow) lockUser(ctx context.Context, userID string) (func(), error) {
	unlock, err := w.locker.Lock(ctx, userLockKey(userID))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("lock user %s: %w", userID, err))
	}
	return unlock, nil
}

func userLockKey(userID string) string {
	return "user:" + userID
}

// load fetches a ticket, translating store errors.
func (w *ticketWorkflow) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := w.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("load ticket %s: %w", ticketID, err))
	}
	return ticket, nil
}

// mutate runs fn on the stored ticket under the ticket's lock and persists the result.
// Nothing is written when fn fails.
func (w *ticketWorkflow) mutate(ctx context.Context, ticketID string, fn func(t *domain.Ticket) error) (*domain.Ticket, error) {
	unlock, err := w.locker.Lock(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("lock ticket %s: %w", ticketID, err))
	}
	defer unlock()

	loadCtx, cancelLoad := w.storeContext(ctx)
	ticket, err := w.load(loadCtx, ticketID)
	cancelLoad()
	if err != nil {
		return nil, err
	}
	if err := fn(ticket); err != nil {
		return nil, mapDomainError(ticket, err)
	}

	writeCtx, cancelWrite := w.storeContext(ctx)
	defer cancelWrite()
	if err := w.tickets.Update(writeCtx, ticket); err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("update ticket %s: %w", ticketID, err))
	}
	return ticket, nil
}

func (w *ticketWorkflow) publishEvent(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = w.now()
	}
	if err := w.dispatcher.Publish(ctx, event); err != nil {
		w.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func (w *ticketWorkflow) publishStatusChange(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, old domain.TicketStatus, note string) {
	w.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: old,
			NewStatus: ticket.Status,
			Note:      note,
		},
	})
}

// mapDomainError converts lifecycle errors into API errors.
func mapDomainError(ticket *domain.Ticket, err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, domain.ErrInvalidTransition):
		details := map[string]any{}
		if ticket != nil {
			details["ticket_id"] = ticket.ID
			details["status"] = ticket.Status.String()
		}
		return apperrors.NewInvalidTransition(err, details)
	case errors.Is(err, domain.ErrEmptyNote), errors.Is(err, domain.ErrEmptyDescription):
		return apperrors.NewValidationError(err.Error(), nil)
	default:
		return apperrors.NewInternalError(err)
	}
}
