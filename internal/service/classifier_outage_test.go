package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spec-kit/school-support/internal/classifier"
	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/repository"
	"github.com/spec-kit/school-support/internal/triage"
)

// hangingClassifier answers nothing until the caller gives up.
func hangingClassifier(t *testing.T) *classifier.Client {
	t.Helper()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	// One phase can take 3*100ms + 2*10ms.
	return classifier.New(classifier.Config{
		Endpoint:       server.URL,
		MaxAttempts:    3,
		Backoff:        10 * time.Millisecond,
		RequestTimeout: 100 * time.Millisecond,
	}, nil)
}

func newSQLiteStore(t *testing.T) *repository.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrateGorm(db))
	return repository.NewGormStore(db)
}

type outageFixture struct {
	tickets *TicketService
	assign  *AssignmentService
	teacher *domain.User
	leader  *domain.User
	tech    *domain.User
}

func newOutageFixture(t *testing.T) *outageFixture {
	t.Helper()
	store := newSQLiteStore(t)
	pipeline := triage.NewPipeline(hangingClassifier(t), triage.DefaultConfig(), nil, nil)
	cfg := TicketConfig{Location: hongKong, StoreTimeout: 2 * time.Second}

	f := &outageFixture{
		tickets: NewTicketService(cfg, TicketDependencies{
			TicketRepo: store.Tickets(),
			UserRepo:   store.Users(),
			Triage:     pipeline,
		}),
		assign: NewAssignmentService(cfg, AssignmentDependencies{
			TicketRepo: store.Tickets(),
			UserRepo:   store.Users(),
		}),
	}
	for _, u := range []struct {
		target **domain.User
		name   string
		role   domain.Role
	}{
		{&f.teacher, "teacher", domain.RoleStaff},
		{&f.leader, "lead", domain.RoleLeader},
		{&f.tech, "tech", domain.RoleTechnician},
	} {
		user := &domain.User{Username: u.name, PasswordHash: "x", DisplayName: u.name, Role: u.role, Active: true}
		require.NoError(t, store.Users().Create(context.Background(), user))
		*u.target = user
	}
	return f
}

func TestCreateTicketSurvivesClassifierOutageBeyondCallerDeadline(t *testing.T) {
	f := newOutageFixture(t)

	// Self-help plus auto-tag outlast the caller's deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()

	ticket, err := f.tickets.CreateTicket(ctx, f.teacher.Actor(), TicketCreateInput{
		Description: "Projector shows no signal",
		Location:    "Room 201",
	}, Answered(false))
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)

	assert.Equal(t, domain.StatusNew, ticket.Status)
	assert.Equal(t, triage.DefaultConfig().DefaultTags.MainCategory, ticket.MainCategory)

	stored, err := f.tickets.GetTicket(context.Background(), f.teacher.Actor(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, stored.ID)
}

func TestResolveSurvivesClassifierOutageBeyondCallerDeadline(t *testing.T) {
	f := newOutageFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.CreateTicket(ctx, f.teacher.Actor(), TicketCreateInput{
		Description: "Wi-Fi drops in the library",
		Suggestion:  "Forget the network and reconnect.",
	}, Answered(false))
	require.NoError(t, err)
	_, err = f.assign.Assign(ctx, f.leader.Actor(), ticket.ID, f.tech.ID)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	resolved, err := f.tickets.Resolve(short, f.tech.Actor(), ticket.ID, "replaced access point")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.AISummary)
	assert.Equal(t, triage.FallbackSummary, *resolved.AISummary)
}
