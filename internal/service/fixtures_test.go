package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/school-support/internal/config"
	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/events"
	"github.com/spec-kit/school-support/internal/lock"
	"github.com/spec-kit/school-support/internal/repository"
)

var (
	hongKong  = time.FixedZone("HKT", 8*60*60)
	fixedTime = time.Date(2025, 3, 10, 9, 30, 0, 0, hongKong)
)

// stubTriage answers every phase with canned values and records what it saw.
type stubTriage struct {
	mu            sync.Mutex
	suggestion    string
	tags          domain.Tags
	summary       string
	selfHelpCalls int
	autoTagCalls  int
	summaryInputs []string
}

func newStubTriage() *stubTriage {
	return &stubTriage{
		suggestion: "Check the HDMI cable is firmly connected.",
		tags:       domain.Tags{MainCategory: "Hardware", SubCategory: "Projector", Priority: domain.PriorityHigh},
		summary:    "[Issue] projector [Action] replaced cable",
	}
}

func (s *stubTriage) SelfHelp(context.Context, string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfHelpCalls++
	return s.suggestion
}

func (s *stubTriage) AutoTag(context.Context, string) domain.Tags {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoTagCalls++
	return s.tags
}

func (s *stubTriage) Summarize(_ context.Context, _ string, remarks string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaryInputs = append(s.summaryInputs, remarks)
	return s.summary
}

// recordingDispatcher keeps every published event.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store      *repository.MemoryStore
	locker     *lock.KeyedMutex
	triage     *stubTriage
	dispatcher *recordingDispatcher
	tickets    *TicketService
	assign     *AssignmentService
	archive    *ArchiveService
	users      *UserService
	auth       *AuthService
	analytics  *AnalyticsService
	now        time.Time

	admin   *domain.User
	leader  *domain.User
	tech    *domain.User
	tech2   *domain.User
	teacher *domain.User
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		BcryptCost:            4,
		DefaultPassword:       "24750331",
		MinPasswordLength:     8,
		AdminUsername:         "admin",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      repository.NewMemoryStore(),
		locker:     lock.NewKeyedMutex(),
		triage:     newStubTriage(),
		dispatcher: &recordingDispatcher{},
		now:        fixedTime,
	}
	cfg := TicketConfig{
		RoleLabels: domain.DefaultRoleLabels(),
		Location:   hongKong,
		Now:        func() time.Time { return f.now },
	}
	f.tickets = NewTicketService(cfg, TicketDependencies{
		TicketRepo: f.store.Tickets(),
		UserRepo:   f.store.Users(),
		Triage:     f.triage,
		Locker:     f.locker,
		Dispatcher: f.dispatcher,
	})
	f.assign = NewAssignmentService(cfg, AssignmentDependencies{
		TicketRepo: f.store.Tickets(),
		UserRepo:   f.store.Users(),
		Locker:     f.locker,
		Dispatcher: f.dispatcher,
	})
	f.archive = NewArchiveService(cfg, ArchiveDependencies{
		TicketRepo:  f.store.Tickets(),
		ArchiveRepo: f.store.Archives(),
		Locker:      f.locker,
		Dispatcher:  f.dispatcher,
	})
	f.users = NewUserService(testAuthConfig(), UserDependencies{
		UserRepo:   f.store.Users(),
		TicketRepo: f.store.Tickets(),
		Locker:     f.locker,
	})
	f.auth = NewAuthService(testAuthConfig(), f.store.Users())
	f.analytics = NewAnalyticsService(f.store.Tickets())

	f.admin = f.addUser(t, "admin", "Administrator", domain.RoleAdmin)
	f.leader = f.addUser(t, "lead", "Leader Lam", domain.RoleLeader)
	f.tech = f.addUser(t, "tech", "Tech Tsang", domain.RoleTechnician)
	f.tech2 = f.addUser(t, "tech2", "Tech Two", domain.RoleTechnician)
	f.teacher = f.addUser(t, "teacher", "Ms Chan", domain.RoleStaff)
	return f
}

func (f *fixture) addUser(t *testing.T, username, name string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, PasswordHash: "x", DisplayName: name, Role: role, Active: true}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

// newTicket raises a New ticket from the teacher.
func (f *fixture) newTicket(t *testing.T, description string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(context.Background(), f.teacher.Actor(), TicketCreateInput{Description: description, Location: "Room 201"}, Answered(false))
	require.NoError(t, err)
	return ticket
}

// assignedTicket raises a ticket and assigns it to f.tech.
func (f *fixture) assignedTicket(t *testing.T, description string) *domain.Ticket {
	t.Helper()
	ticket := f.newTicket(t, description)
	assigned, err := f.assign.Assign(context.Background(), f.leader.Actor(), ticket.ID, f.tech.ID)
	require.NoError(t, err)
	return assigned
}
