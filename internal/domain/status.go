package domain

import (
	"database/sql/driver"
	"fmt"
)

// TicketStatus is the closed set of lifecycle states for a ticket.
type TicketStatus uint8

const (
	StatusNew TicketStatus = iota + 1
	StatusAssigned
	StatusInProgress
	StatusResolved
	StatusCancelled
	StatusReassignRequested
)

// AllStatuses lists every status in declaration order.
var AllStatuses = []TicketStatus{
	StatusNew,
	StatusAssigned,
	StatusInProgress,
	StatusResolved,
	StatusCancelled,
	StatusReassignRequested,
}

// String returns the stored label of the status.
func (s TicketStatus) String() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusAssigned:
		return "Assigned"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	case StatusCancelled:
		return "Cancelled"
	case StatusReassignRequested:
		return "Reassign_Req"
	default:
		return fmt.Sprintf("TicketStatus(%d)", uint8(s))
	}
}

// ParseTicketStatus maps a stored label back to its status.
func ParseTicketStatus(label string) (TicketStatus, error) {
	for _, s := range AllStatuses {
		if s.String() == label {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown ticket status %q", label)
}

// Valid reports whether s is a declared status.
func (s TicketStatus) Valid() bool {
	return s >= StatusNew && s <= StatusReassignRequested
}

// IsTerminal reports whether no further transition is permitted.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case StatusResolved, StatusCancelled:
		return true
	case StatusNew, StatusAssigned, StatusInProgress, StatusReassignRequested:
		return false
	default:
		return false
	}
}

// IsAssignable reports whether a Leader may assign a technician from s.
func (s TicketStatus) IsAssignable() bool {
	switch s {
	case StatusNew, StatusReassignRequested:
		return true
	case StatusAssigned, StatusInProgress, StatusResolved, StatusCancelled:
		return false
	default:
		return false
	}
}

// HoldsAssignee reports whether a ticket in s must carry an assignee.
func (s TicketStatus) HoldsAssignee() bool {
	switch s {
	case StatusAssigned, StatusInProgress:
		return true
	case StatusNew, StatusReassignRequested, StatusResolved, StatusCancelled:
		return false
	default:
		return false
	}
}

// TerminalStatuses returns the statuses eligible for archival.
func TerminalStatuses() []TicketStatus {
	return []TicketStatus{StatusResolved, StatusCancelled}
}

// OpenStatuses returns every non-terminal status.
func OpenStatuses() []TicketStatus {
	return []TicketStatus{StatusNew, StatusAssigned, StatusInProgress, StatusReassignRequested}
}

// MarshalText encodes the status label.
func (s TicketStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ticket status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status label.
func (s *TicketStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseTicketStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value persists the status as its label.
func (s TicketStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ticket status %d", uint8(s))
	}
	return s.String(), nil
}

// Scan reads a status label from the database.
func (s *TicketStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	case nil:
		return fmt.Errorf("ticket status is null")
	default:
		return fmt.Errorf("unsupported ticket status type %T", src)
	}
}
