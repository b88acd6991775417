package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hk        = time.FixedZone("HKT", 8*3600)
	testNow   = time.Date(2024, 3, 1, 9, 30, 0, 0, hk)
	creator   = Actor{UserID: "u-staff", Role: RoleStaff}
	leader    = Actor{UserID: "u-lead", Role: RoleLeader}
	tech      = Actor{UserID: "u-tech", Role: RoleTechnician}
	otherTech = Actor{UserID: "u-tech2", Role: RoleTechnician}
	techUser  = &User{ID: "u-tech", Username: "tech", DisplayName: "Tech One", Role: RoleTechnician, Active: true}
)

func newTestTicket(t *testing.T) *Ticket {
	t.Helper()
	tk, err := NewTicket(creator, "projector bulb flickers", "Room 101",
		Tags{MainCategory: "Hardware", SubCategory: "Projector", Priority: PriorityMedium}, testNow)
	require.NoError(t, err)
	tk.ID = "t-1"
	return tk
}

func assignedTicket(t *testing.T) *Ticket {
	t.Helper()
	tk := newTestTicket(t)
	require.NoError(t, tk.Assign(leader, techUser, "TSS Leader", testNow))
	return tk
}

func TestNewTicket(t *testing.T) {
	tk := newTestTicket(t)
	assert.Equal(t, StatusNew, tk.Status)
	assert.Nil(t, tk.AssigneeID)
	assert.Nil(t, tk.AISummary)
	assert.Empty(t, tk.Remarks)
	assert.NoError(t, tk.CheckInvariants())

	_, err := NewTicket(creator, "   ", "", Tags{}, testNow)
	assert.ErrorIs(t, err, ErrEmptyDescription)
}

func TestNewSelfResolvedTicket(t *testing.T) {
	tk, err := NewSelfResolvedTicket(creator, "mouse not working", "Staff room",
		Tags{MainCategory: "Hardware", SubCategory: "Peripherals", Priority: PriorityLow}, testNow)
	require.NoError(t, err)

	assert.Equal(t, StatusResolved, tk.Status)
	require.NotNil(t, tk.AISummary)
	assert.Equal(t, SelfHelpSummary, *tk.AISummary)
	require.NotNil(t, tk.ResolvedAt)
	assert.True(t, tk.ResolvedAt.Equal(tk.CreatedAt))
	assert.NoError(t, tk.CheckInvariants())
}

func TestAssign(t *testing.T) {
	t.Run("leader assigns new ticket", func(t *testing.T) {
		tk := assignedTicket(t)
		assert.Equal(t, StatusAssigned, tk.Status)
		require.NotNil(t, tk.AssigneeID)
		assert.Equal(t, "u-tech", *tk.AssigneeID)
		require.Len(t, tk.Remarks, 1)
		assert.Equal(t, "[2024-03-01 09:30:00] TSS Leader: Assigned to Tech One", tk.Remarks[0].String())
	})

	t.Run("technician cannot assign", func(t *testing.T) {
		tk := newTestTicket(t)
		err := tk.Assign(tech, techUser, "TSS", testNow)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusNew, tk.Status)
		assert.Empty(t, tk.Remarks)
	})

	t.Run("in progress ticket is not assignable", func(t *testing.T) {
		tk := assignedTicket(t)
		require.NoError(t, tk.StartProgress(tech, "TSS", "checking", testNow))
		before := len(tk.Remarks)

		err := tk.Assign(leader, techUser, "TSS Leader", testNow)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusInProgress, tk.Status)
		assert.Len(t, tk.Remarks, before)
	})

	t.Run("reassign request returns ticket to pool", func(t *testing.T) {
		tk := assignedTicket(t)
		require.NoError(t, tk.RequestReassignment(tech, "needs electrician", testNow))
		require.NoError(t, tk.Assign(leader, techUser, "TSS Leader", testNow))
		assert.Equal(t, StatusAssigned, tk.Status)
	})

	t.Run("inactive or staff assignee rejected", func(t *testing.T) {
		tk := newTestTicket(t)
		inactive := &User{ID: "x", Role: RoleTechnician, Active: false}
		assert.ErrorIs(t, tk.Assign(leader, inactive, "TSS Leader", testNow), ErrInvalidTransition)
		staff := &User{ID: "y", Role: RoleStaff, Active: true}
		assert.ErrorIs(t, tk.Assign(leader, staff, "TSS Leader", testNow), ErrInvalidTransition)
	})
}

func TestWorkAccess(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*testing.T) *Ticket
		actor   Actor
		wantErr bool
	}{
		{name: "assigned technician", prepare: assignedTicket, actor: tech},
		{name: "other technician", prepare: assignedTicket, actor: otherTech, wantErr: true},
		{name: "leader on new ticket", prepare: newTestTicket, actor: leader},
		{name: "technician on new ticket", prepare: newTestTicket, actor: tech, wantErr: true},
		{name: "staff creator", prepare: assignedTicket, actor: creator, wantErr: true},
		{name: "admin", prepare: assignedTicket, actor: Actor{UserID: "a", Role: RoleAdmin}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tk := tc.prepare(t)
			err := tk.StartProgress(tc.actor, "x", "working on it", testNow)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusInProgress, tk.Status)
			assert.NoError(t, tk.CheckInvariants())
		})
	}
}

func TestLeaderTakesOverUnassignedTicket(t *testing.T) {
	tk := newTestTicket(t)
	require.NoError(t, tk.StartProgress(leader, "TSS Leader", "on my way", testNow))
	require.NotNil(t, tk.AssigneeID)
	assert.Equal(t, leader.UserID, *tk.AssigneeID)
	assert.NoError(t, tk.CheckInvariants())
}

func TestResolve(t *testing.T) {
	tk := assignedTicket(t)
	remark := tk.ResolutionRemark("TSS", "replaced cable", testNow)
	require.NoError(t, tk.Resolve(tech, remark, "[Issue] flicker [Action] cable", testNow))

	assert.Equal(t, StatusResolved, tk.Status)
	require.NotNil(t, tk.AISummary)
	require.NotNil(t, tk.ResolvedAt)
	assert.True(t, strings.HasSuffix(tk.Remarks.String(), "TSS: replaced cable"))
	assert.NoError(t, tk.CheckInvariants())

	err := tk.StartProgress(tech, "TSS", "again", testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequestReassignmentClearsAssignee(t *testing.T) {
	tk := assignedTicket(t)
	require.NoError(t, tk.RequestReassignment(tech, "out of my depth", testNow))

	assert.Equal(t, StatusReassignRequested, tk.Status)
	assert.Nil(t, tk.AssigneeID)
	assert.Equal(t, "[2024-03-01 09:30:00] REASSIGN REQ: out of my depth", tk.Remarks[len(tk.Remarks)-1].String())
	assert.NoError(t, tk.CheckInvariants())

	err := tk.RequestReassignment(tech, "again", testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAddRemarkKeepsStatus(t *testing.T) {
	tk := assignedTicket(t)
	require.NoError(t, tk.AddRemark(tech, "TSS", "waiting for parts", testNow))
	assert.Equal(t, StatusAssigned, tk.Status)
	assert.ErrorIs(t, tk.AddRemark(tech, "TSS", "  ", testNow), ErrEmptyNote)
}

func TestCancel(t *testing.T) {
	t.Run("creator cancels open ticket", func(t *testing.T) {
		tk := assignedTicket(t)
		require.NoError(t, tk.Cancel(creator, "Staff", testNow))
		assert.Equal(t, StatusCancelled, tk.Status)
		assert.NotNil(t, tk.AssigneeID)
		assert.NoError(t, tk.CheckInvariants())
	})

	t.Run("non creator rejected", func(t *testing.T) {
		tk := newTestTicket(t)
		assert.ErrorIs(t, tk.Cancel(leader, "TSS Leader", testNow), ErrInvalidTransition)
	})

	t.Run("resolved ticket cannot be cancelled", func(t *testing.T) {
		tk := assignedTicket(t)
		remark := tk.ResolutionRemark("TSS", "done", testNow)
		require.NoError(t, tk.Resolve(tech, remark, "summary", testNow))
		before := tk.Remarks.String()

		err := tk.Cancel(creator, "Staff", testNow)
		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "cancel", te.Op)
		assert.Equal(t, StatusResolved, tk.Status)
		assert.Equal(t, before, tk.Remarks.String())
	})
}

func TestRemarkLogIsAppendOnly(t *testing.T) {
	tk := newTestTicket(t)
	steps := []func() error{
		func() error { return tk.Assign(leader, techUser, "TSS Leader", testNow) },
		func() error { return tk.StartProgress(tech, "TSS", "checking lamp", testNow.Add(time.Minute)) },
		func() error { return tk.AddRemark(leader, "TSS Leader", "priority bump", testNow.Add(2*time.Minute)) },
		func() error { return tk.RequestReassignment(tech, "needs vendor", testNow.Add(3*time.Minute)) },
	}

	prev := tk.Remarks.String()
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		cur := tk.Remarks.String()
		assert.True(t, strings.HasPrefix(cur, prev), "step %d rewrote history", i)
		assert.Len(t, tk.Remarks, i+1)
		prev = cur
	}
}

func TestRemarkTextIsSingleLine(t *testing.T) {
	tk := assignedTicket(t)
	require.NoError(t, tk.AddRemark(tech, "TSS", "line one\nline two", testNow))
	assert.Equal(t, "line one line two", tk.Remarks[len(tk.Remarks)-1].Text)
}

func TestCanView(t *testing.T) {
	tk := assignedTicket(t)
	assert.True(t, tk.CanView(creator))
	assert.True(t, tk.CanView(tech))
	assert.True(t, tk.CanView(leader))
	assert.False(t, tk.CanView(otherTech))
	assert.False(t, tk.CanView(Actor{UserID: "someone", Role: RoleStaff}))
}
