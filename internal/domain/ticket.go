package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SelfHelpSummary is stored on tickets the requester fixed from the suggestion.
const SelfHelpSummary = "[Self-Help] User resolved via System Suggestion."

var (
	// ErrInvalidTransition marks a role/state combination the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid ticket transition")
	// ErrEmptyDescription is returned when a ticket is raised without a description.
	ErrEmptyDescription = errors.New("ticket description is required")
	// ErrEmptyNote is returned when a remark-carrying operation has no text.
	ErrEmptyNote = errors.New("remark text is required")
)

// TransitionError describes a rejected operation. It matches ErrInvalidTransition.
type TransitionError struct {
	Op     string
	Status TicketStatus
	Role   Role
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s by %s on %s ticket: %s", e.Op, e.Role, e.Status, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Ticket is the aggregate for a support request.
type Ticket struct {
	ID           string
	CreatorID    string
	AssigneeID   *string
	MainCategory string
	SubCategory  string
	Priority     TicketPriority
	Description  string
	Location     string
	Remarks      RemarkLog
	AISummary    *string
	Status       TicketStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time
	UpdatedAt    time.Time
}

// NewTicket builds a New ticket awaiting assignment.
func NewTicket(creator Actor, description, location string, tags Tags, now time.Time) (*Ticket, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	return &Ticket{
		CreatorID:    creator.UserID,
		MainCategory: tags.MainCategory,
		SubCategory:  tags.SubCategory,
		Priority:     tags.Priority,
		Description:  description,
		Location:     strings.TrimSpace(location),
		Remarks:      RemarkLog{},
		Status:       StatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewSelfResolvedTicket records a request the creator fixed from the self-help suggestion.
func NewSelfResolvedTicket(creator Actor, description, location string, tags Tags, now time.Time) (*Ticket, error) {
	t, err := NewTicket(creator, description, location, tags, now)
	if err != nil {
		return nil, err
	}
	summary := SelfHelpSummary
	resolvedAt := now
	t.Status = StatusResolved
	t.AISummary = &summary
	t.ResolvedAt = &resolvedAt
	return t, nil
}

// Assign hands a New or Reassign_Req ticket to a technician. Only a Leader may assign.
func (t *Ticket) Assign(actor Actor, assignee *User, author string, now time.Time) error {
	if actor.Role != RoleLeader {
		return t.reject("assign", actor, "only a leader may assign tickets")
	}
	if !t.Status.IsAssignable() {
		return t.reject("assign", actor, "ticket is not awaiting assignment")
	}
	if assignee == nil || !assignee.Active || !assignee.Role.CanWorkTickets() {
		return t.reject("assign", actor, "assignee must be an active leader or technician")
	}
	id := assignee.ID
	t.AssigneeID = &id
	t.Status = StatusAssigned
	name := assignee.DisplayName
	if name == "" {
		name = assignee.Username
	}
	t.appendRemark(author, "Assigned to "+name, now)
	return nil
}

// StartProgress moves the ticket to In Progress and records the note.
func (t *Ticket) StartProgress(actor Actor, author, note string, now time.Time) error {
	if err := t.CheckWorkAccess("progress", actor); err != nil {
		return err
	}
	if strings.TrimSpace(note) == "" {
		return ErrEmptyNote
	}
	t.takeOverIfUnassigned(actor)
	t.Status = StatusInProgress
	t.appendRemark(author, note, now)
	return nil
}

// ResolutionRemark builds the remark a Resolve would append, without mutating t.
func (t *Ticket) ResolutionRemark(author, note string, now time.Time) Remark {
	return newRemark(author, note, now)
}

// Resolve closes the ticket with the given remark and summary.
func (t *Ticket) Resolve(actor Actor, remark Remark, summary string, now time.Time) error {
	if err := t.CheckWorkAccess("resolve", actor); err != nil {
		return err
	}
	if strings.TrimSpace(remark.Text) == "" {
		return ErrEmptyNote
	}
	t.takeOverIfUnassigned(actor)
	t.Remarks = t.Remarks.With(remark)
	resolvedAt := now
	t.Status = StatusResolved
	t.AISummary = &summary
	t.ResolvedAt = &resolvedAt
	t.UpdatedAt = now
	return nil
}

// RequestReassignment returns the ticket to the leader's pool and clears the assignee.
func (t *Ticket) RequestReassignment(actor Actor, reason string, now time.Time) error {
	if err := t.CheckWorkAccess("request reassignment", actor); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return ErrEmptyNote
	}
	t.AssigneeID = nil
	t.Status = StatusReassignRequested
	t.appendRemark(ReassignTag, reason, now)
	return nil
}

// AddRemark appends a note without changing status.
func (t *Ticket) AddRemark(actor Actor, author, note string, now time.Time) error {
	if err := t.CheckWorkAccess("remark", actor); err != nil {
		return err
	}
	if strings.TrimSpace(note) == "" {
		return ErrEmptyNote
	}
	t.appendRemark(author, note, now)
	return nil
}

// Cancel withdraws the ticket. Only its creator may cancel, and only while it is open.
func (t *Ticket) Cancel(actor Actor, author string, now time.Time) error {
	if actor.UserID != t.CreatorID {
		return t.reject("cancel", actor, "only the creator may cancel")
	}
	if t.Status.IsTerminal() {
		return t.reject("cancel", actor, "ticket is already closed")
	}
	t.Status = StatusCancelled
	t.appendRemark(author, "Ticket cancelled by creator", now)
	return nil
}

// CheckWorkAccess verifies actor may progress, resolve, remark or release the ticket.
func (t *Ticket) CheckWorkAccess(op string, actor Actor) error {
	if t.Status.IsTerminal() {
		return t.reject(op, actor, "ticket is already closed")
	}
	switch actor.Role {
	case RoleLeader:
		return nil
	case RoleTechnician:
		if !t.IsAssignedTo(actor.UserID) {
			return t.reject(op, actor, "ticket is not assigned to this technician")
		}
		return nil
	case RoleAdmin, RoleStaff:
		return t.reject(op, actor, "role may not work tickets")
	default:
		return t.reject(op, actor, "unknown role")
	}
}

// CanView reports whether actor may read the ticket.
func (t *Ticket) CanView(actor Actor) bool {
	switch actor.Role {
	case RoleAdmin, RoleLeader:
		return true
	case RoleTechnician, RoleStaff:
		return t.CreatorID == actor.UserID || t.IsAssignedTo(actor.UserID)
	default:
		return false
	}
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// CheckInvariants validates the assignee and summary rules of the lifecycle.
func (t *Ticket) CheckInvariants() error {
	if !t.Status.Valid() {
		return fmt.Errorf("ticket %s: invalid status", t.ID)
	}
	if t.Status.HoldsAssignee() && t.AssigneeID == nil {
		return fmt.Errorf("ticket %s: %s without assignee", t.ID, t.Status)
	}
	if (t.Status == StatusNew || t.Status == StatusReassignRequested) && t.AssigneeID != nil {
		return fmt.Errorf("ticket %s: %s with assignee", t.ID, t.Status)
	}
	if (t.Status == StatusResolved) != (t.AISummary != nil) {
		return fmt.Errorf("ticket %s: summary presence does not match %s", t.ID, t.Status)
	}
	return nil
}

func (t *Ticket) takeOverIfUnassigned(actor Actor) {
	if t.AssigneeID == nil && actor.Role == RoleLeader {
		id := actor.UserID
		t.AssigneeID = &id
	}
}

func (t *Ticket) appendRemark(author, text string, now time.Time) {
	t.Remarks = t.Remarks.With(newRemark(author, text, now))
	t.UpdatedAt = now
}

func (t *Ticket) reject(op string, actor Actor, reason string) error {
	return &TransitionError{Op: op, Status: t.Status, Role: actor.Role, Reason: reason}
}
