package dto

// AssignRequest payload.
type AssignRequest struct {
	TechnicianID string `json:"technician_id" validate:"required"`
}

// TechnicianResponse is an assignable user and their open workload.
type TechnicianResponse struct {
	User        UserResponse `json:"user"`
	OpenTickets int          `json:"open_tickets"`
}

// CountResponse is one bucket of an aggregate.
type CountResponse struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// BreakdownResponse distributes non-resolved tickets.
type BreakdownResponse struct {
	Total      int             `json:"total"`
	ByCategory []CountResponse `json:"by_category"`
	ByPriority []CountResponse `json:"by_priority"`
}

// PerformanceResponse is the resolved count of one leader or technician.
type PerformanceResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Resolved    int    `json:"resolved"`
}
