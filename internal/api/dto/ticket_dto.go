package dto

import "time"

// SelfHelpRequest asks for a suggestion before a ticket is raised.
type SelfHelpRequest struct {
	Description string `json:"description" validate:"required"`
}

// SelfHelpResponse carries the suggestion shown to the requester.
type SelfHelpResponse struct {
	Suggestion string `json:"suggestion"`
}

// CreateTicketRequest payload. SelfResolved records the requester's answer to
// the suggestion returned by the self-help endpoint.
type CreateTicketRequest struct {
	Description  string `json:"description" validate:"required"`
	Location     string `json:"location" validate:"max=200"`
	Suggestion   string `json:"suggestion"`
	SelfResolved bool   `json:"self_resolved"`
}

// NoteRequest carries the text of a progress, resolution, remark or reassignment.
type NoteRequest struct {
	Note string `json:"note" validate:"required"`
}

// RemarkResponse is one remark log entry.
type RemarkResponse struct {
	At     time.Time `json:"at"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

// TicketResponse exposes the full ticket field set.
type TicketResponse struct {
	ID           string           `json:"id"`
	CreatorID    string           `json:"creator_id"`
	AssigneeID   *string          `json:"assignee_id"`
	MainCategory string           `json:"main_category"`
	SubCategory  string           `json:"sub_category"`
	Priority     string           `json:"priority"`
	Description  string           `json:"description"`
	Location     string           `json:"location"`
	Status       string           `json:"status"`
	Remarks      []RemarkResponse `json:"remarks"`
	RemarkLog    string           `json:"remark_log"`
	AISummary    *string          `json:"ai_summary"`
	CreatedAt    time.Time        `json:"created_at"`
	ResolvedAt   *time.Time       `json:"resolved_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
