package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/school-support/internal/domain"
)

var contractBase = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, store Store, username string, role domain.Role, active bool) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		PasswordHash: "hash",
		DisplayName:  "Name " + username,
		Role:         role,
		FirstLogin:   true,
		Active:       active,
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	return user
}

func seedTicket(t *testing.T, store Store, creator *domain.User, status domain.TicketStatus, assignee *domain.User, created time.Time, main string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		CreatorID:    creator.ID,
		MainCategory: main,
		SubCategory:  "Other",
		Priority:     priority,
		Description:  "issue created " + created.Format(time.RFC3339),
		Location:     "Room 101",
		Remarks:      domain.RemarkLog{},
		Status:       status,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if assignee != nil {
		id := assignee.ID
		ticket.AssigneeID = &id
	}
	if status == domain.StatusResolved {
		summary := "fixed it"
		resolved := created.Add(time.Hour)
		ticket.AISummary = &summary
		ticket.ResolvedAt = &resolved
	}
	require.NoError(t, store.Tickets().Create(context.Background(), ticket))
	require.NotEmpty(t, ticket.ID)
	return ticket
}

// runStoreContract exercises the behavior every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("users create, read and update", func(t *testing.T) {
		store := newStore(t)
		alice := seedUser(t, store, "alice", domain.RoleStaff, true)

		byName, err := store.Users().GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byName.ID)
		assert.Equal(t, domain.RoleStaff, byName.Role)
		assert.True(t, byName.FirstLogin)

		byName.FirstLogin = false
		byName.PasswordHash = "new-hash"
		byName.Active = false
		require.NoError(t, store.Users().Update(ctx, byName))

		reloaded, err := store.Users().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.FirstLogin)
		assert.False(t, reloaded.Active)
		assert.Equal(t, "new-hash", reloaded.PasswordHash)
		assert.Equal(t, "alice", reloaded.Username)
	})

	t.Run("users reject duplicate usernames", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, store, "bob", domain.RoleStaff, true)
		err := store.Users().Create(ctx, &domain.User{Username: "bob", PasswordHash: "x", Role: domain.RoleStaff, Active: true})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
	})

	t.Run("users missing rows map to not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Users().GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Users().GetByUsername(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		err = store.Users().Update(ctx, &domain.User{ID: "missing", Role: domain.RoleStaff})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("users list filters", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, store, "admin", domain.RoleAdmin, true)
		seedUser(t, store, "lead", domain.RoleLeader, true)
		seedUser(t, store, "tech1", domain.RoleTechnician, true)
		seedUser(t, store, "tech2", domain.RoleTechnician, false)
		seedUser(t, store, "teacher", domain.RoleStaff, true)

		all, err := store.Users().List(ctx, UserFilter{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, "admin", all[0].Username)

		workers, err := store.Users().List(ctx, UserFilter{Roles: []domain.Role{domain.RoleLeader, domain.RoleTechnician}, ActiveOnly: true})
		require.NoError(t, err)
		names := []string{}
		for _, u := range workers {
			names = append(names, u.Username)
		}
		assert.Equal(t, []string{"lead", "tech1"}, names)

		search, err := store.Users().List(ctx, UserFilter{Search: "TECH"})
		require.NoError(t, err)
		assert.Len(t, search, 2)

		paged, err := store.Users().List(ctx, UserFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, paged, 2)
		assert.Equal(t, "lead", paged[0].Username)
	})

	t.Run("tickets round trip remarks and optional fields", func(t *testing.T) {
		store := newStore(t)
		creator := seedUser(t, store, "creator", domain.RoleStaff, true)
		tech := seedUser(t, store, "tech", domain.RoleTechnician, true)
		ticket := seedTicket(t, store, creator, domain.StatusNew, nil, contractBase, "Hardware", domain.PriorityHigh)

		loaded, err := store.Tickets().GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusNew, loaded.Status)
		assert.Nil(t, loaded.AssigneeID)
		assert.Nil(t, loaded.AISummary)
		assert.Empty(t, loaded.Remarks)

		leader := domain.Actor{UserID: "leader", Role: domain.RoleLeader}
		later := contractBase.Add(time.Minute)
		require.NoError(t, loaded.Assign(leader, tech, "TSS Leader", later))
		require.NoError(t, store.Tickets().Update(ctx, loaded))

		reloaded, err := store.Tickets().GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAssigned, reloaded.Status)
		require.NotNil(t, reloaded.AssigneeID)
		assert.Equal(t, tech.ID, *reloaded.AssigneeID)
		assert.Equal(t, loaded.Remarks.String(), reloaded.Remarks.String())
		assert.True(t, reloaded.CreatedAt.Equal(contractBase))
		assert.Equal(t, ticket.Description, reloaded.Description)
	})

	t.Run("tickets missing rows map to not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Tickets().GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		err = store.Tickets().Update(ctx, &domain.Ticket{ID: "missing", Status: domain.StatusNew, Remarks: domain.RemarkLog{}})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tickets list filters newest first", func(t *testing.T) {
		store := newStore(t)
		creator := seedUser(t, store, "creator", domain.RoleStaff, true)
		other := seedUser(t, store, "other", domain.RoleStaff, true)
		tech := seedUser(t, store, "tech", domain.RoleTechnician, true)

		oldest := seedTicket(t, store, creator, domain.StatusResolved, tech, contractBase, "Hardware", domain.PriorityLow)
		middle := seedTicket(t, store, creator, domain.StatusAssigned, tech, contractBase.Add(24*time.Hour), "Network", domain.PriorityHigh)
		newest := seedTicket(t, store, other, domain.StatusNew, nil, contractBase.Add(48*time.Hour), "Hardware", domain.PriorityMedium)

		all, err := store.Tickets().ListWithFilter(ctx, TicketFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

		mine, err := store.Tickets().ListWithFilter(ctx, TicketFilter{CreatorID: &creator.ID})
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		queue, err := store.Tickets().ListWithFilter(ctx, TicketFilter{AssigneeID: &tech.ID, ExcludeStatuses: domain.TerminalStatuses()})
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, middle.ID, queue[0].ID)

		pool, err := store.Tickets().ListWithFilter(ctx, TicketFilter{Statuses: []domain.TicketStatus{domain.StatusNew, domain.StatusReassignRequested}})
		require.NoError(t, err)
		require.Len(t, pool, 1)
		assert.Equal(t, newest.ID, pool[0].ID)

		cutoff := contractBase.Add(12 * time.Hour)
		aged, err := store.Tickets().ListWithFilter(ctx, TicketFilter{CreatedBefore: &cutoff})
		require.NoError(t, err)
		require.Len(t, aged, 1)
		assert.Equal(t, oldest.ID, aged[0].ID)

		limited, err := store.Tickets().ListWithFilter(ctx, TicketFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, middle.ID, limited[0].ID)
	})

	t.Run("created-before cutoff ignores time zone of stored values", func(t *testing.T) {
		store := newStore(t)
		creator := seedUser(t, store, "zones", domain.RoleStaff, true)
		hkt := time.FixedZone("HKT", 8*60*60)

		early := seedTicket(t, store, creator, domain.StatusCancelled, nil, time.Date(2025, 3, 1, 10, 0, 0, 0, hkt), "Network", domain.PriorityLow)
		seedTicket(t, store, creator, domain.StatusCancelled, nil, time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC), "Network", domain.PriorityLow)

		cutoff := time.Date(2025, 3, 1, 10, 30, 0, 0, hkt)
		aged, err := store.Tickets().ListWithFilter(ctx, TicketFilter{CreatedBefore: &cutoff})
		require.NoError(t, err)
		require.Len(t, aged, 1)
		assert.Equal(t, early.ID, aged[0].ID)
		assert.True(t, aged[0].CreatedAt.Equal(early.CreatedAt))
	})

	t.Run("tickets aggregate counts", func(t *testing.T) {
		store := newStore(t)
		creator := seedUser(t, store, "creator", domain.RoleStaff, true)
		lead := seedUser(t, store, "lead", domain.RoleLeader, true)
		tech := seedUser(t, store, "tech", domain.RoleTechnician, true)
		seedUser(t, store, "retired", domain.RoleTechnician, false)

		seedTicket(t, store, creator, domain.StatusResolved, tech, contractBase, "Hardware", domain.PriorityLow)
		seedTicket(t, store, creator, domain.StatusResolved, tech, contractBase.Add(time.Hour), "Hardware", domain.PriorityLow)
		seedTicket(t, store, creator, domain.StatusInProgress, tech, contractBase.Add(2*time.Hour), "Network", domain.PriorityHigh)
		seedTicket(t, store, creator, domain.StatusNew, nil, contractBase.Add(3*time.Hour), "Network", domain.PriorityHigh)
		seedTicket(t, store, creator, domain.StatusCancelled, nil, contractBase.Add(4*time.Hour), "Software", domain.PriorityMedium)

		open, err := store.Tickets().CountOpenByUser(ctx, creator.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, open)
		open, err = store.Tickets().CountOpenByUser(ctx, tech.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, open)

		categories, err := store.Tickets().CountByCategory(ctx)
		require.NoError(t, err)
		assert.Equal(t, []CategoryCount{{MainCategory: "Network", Count: 2}, {MainCategory: "Software", Count: 1}}, categories)

		priorities, err := store.Tickets().CountByPriority(ctx)
		require.NoError(t, err)
		assert.Equal(t, []PriorityCount{{Priority: domain.PriorityHigh, Count: 2}, {Priority: domain.PriorityMedium, Count: 1}}, priorities)

		resolved, err := store.Tickets().CountResolvedByAssignee(ctx)
		require.NoError(t, err)
		assert.Equal(t, []AssigneeCount{
			{UserID: tech.ID, DisplayName: tech.DisplayName, Resolved: 2},
			{UserID: lead.ID, DisplayName: lead.DisplayName, Resolved: 0},
		}, resolved)
	})

	t.Run("archive moves terminal tickets only", func(t *testing.T) {
		store := newStore(t)
		creator := seedUser(t, store, "creator", domain.RoleStaff, true)
		tech := seedUser(t, store, "tech", domain.RoleTechnician, true)
		closed := seedTicket(t, store, creator, domain.StatusResolved, tech, contractBase, "Hardware", domain.PriorityLow)
		open := seedTicket(t, store, creator, domain.StatusAssigned, tech, contractBase, "Hardware", domain.PriorityLow)

		rec := domain.NewArchiveRecord(closed, time.UTC, contractBase.Add(400*24*time.Hour))
		require.NoError(t, store.Archives().MoveToArchive(ctx, rec))
		assert.NotEmpty(t, rec.ID)

		_, err := store.Tickets().GetByID(ctx, closed.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		err = store.Archives().MoveToArchive(ctx, domain.NewArchiveRecord(open, time.UTC, contractBase))
		assert.ErrorIs(t, err, ErrNotArchivable)
		_, err = store.Tickets().GetByID(ctx, open.ID)
		assert.NoError(t, err)

		records, err := store.Archives().List(ctx, ArchiveFilter{})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, closed.ID, records[0].OriginalTicketID)
		assert.Equal(t, "fixed it", records[0].Summary)
		assert.Equal(t, "2025", records[0].Year)
		assert.Equal(t, domain.StatusResolved, records[0].FinalStatus)
	})

	t.Run("archive search by keyword", func(t *testing.T) {
		store := newStore(t)
		creator := seedUser(t, store, "creator", domain.RoleStaff, true)
		first := seedTicket(t, store, creator, domain.StatusCancelled, nil, contractBase, "Hardware", domain.PriorityLow)
		second := seedTicket(t, store, creator, domain.StatusCancelled, nil, contractBase.Add(time.Hour), "Hardware", domain.PriorityLow)

		require.NoError(t, store.Archives().MoveToArchive(ctx, &domain.ArchiveRecord{
			OriginalTicketID: first.ID, Summary: "Projector bulb replaced", MainCategory: "Hardware",
			SubCategory: "Projector", Year: "2025", FinalStatus: domain.StatusCancelled, ArchivedAt: contractBase,
		}))
		require.NoError(t, store.Archives().MoveToArchive(ctx, &domain.ArchiveRecord{
			OriginalTicketID: second.ID, Summary: "WiFi reset", MainCategory: "Network",
			SubCategory: "WiFi", Year: "2025", FinalStatus: domain.StatusCancelled, ArchivedAt: contractBase.Add(time.Hour),
		}))

		hits, err := store.Archives().List(ctx, ArchiveFilter{Keyword: "projector"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, first.ID, hits[0].OriginalTicketID)

		all, err := store.Archives().List(ctx, ArchiveFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, second.ID, all[0].OriginalTicketID)
	})
}
