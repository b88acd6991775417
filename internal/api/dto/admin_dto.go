package dto

import "time"

// CreateUserRequest payload. Role is the numeric role identifier.
type CreateUserRequest struct {
	Username    string `json:"username" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"max=120"`
	Role        int    `json:"role" validate:"required,oneof=1 2 3 4"`
}

// ImportUsersRequest payload. Rows are validated one by one by the service.
type ImportUsersRequest struct {
	Users []CreateUserRequest `json:"users" validate:"required,min=1"`
}

// ImportUsersResponse reports created accounts and skipped usernames.
type ImportUsersResponse struct {
	Created []UserResponse    `json:"created"`
	Skipped map[string]string `json:"skipped"`
}

// ArchiveRequest selects the cutoff either by months or by preset.
type ArchiveRequest struct {
	Months *int   `json:"months" validate:"omitempty,min=0"`
	Preset string `json:"preset" validate:"omitempty,oneof=half_year year all"`
}

// ArchiveResponse reports a sweep.
type ArchiveResponse struct {
	Months   int `json:"months"`
	Archived int `json:"archived"`
}

// ArchiveRecordResponse is one archived ticket.
type ArchiveRecordResponse struct {
	ID               string    `json:"id"`
	OriginalTicketID string    `json:"original_ticket_id"`
	Summary          string    `json:"summary"`
	MainCategory     string    `json:"main_category"`
	SubCategory      string    `json:"sub_category"`
	Year             string    `json:"year"`
	FinalStatus      string    `json:"final_status"`
	ArchivedAt       time.Time `json:"archived_at"`
}
