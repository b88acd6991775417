package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/school-support/internal/api/dto"
	"github.com/spec-kit/school-support/internal/service"
)

// LeaderHandler exposes the assignment pool and team reporting.
type LeaderHandler struct {
	tickets   *service.TicketService
	assign    *service.AssignmentService
	analytics *service.AnalyticsService
}

// NewLeaderHandler constructs handler.
func NewLeaderHandler(tickets *service.TicketService, assign *service.AssignmentService, analytics *service.AnalyticsService) *LeaderHandler {
	return &LeaderHandler{tickets: tickets, assign: assign, analytics: analytics}
}

// Pool GET /leader/pool.
func (h *LeaderHandler) Pool(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListPool(c.UserContext(), actor, listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(tickets)})
}

// Assign POST /leader/tickets/:id/assign.
func (h *LeaderHandler) Assign(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.assign.Assign(c.UserContext(), actor, c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Technicians GET /leader/technicians.
func (h *LeaderHandler) Technicians(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	loads, err := h.assign.ListTechnicians(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(loads))
	for i := range loads {
		items = append(items, dto.TechnicianResponse{User: userResponse(&loads[i].User), OpenTickets: loads[i].OpenTickets})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Breakdown GET /analytics/breakdown.
func (h *LeaderHandler) Breakdown(c *fiber.Ctx) error {
	breakdown, err := h.analytics.Breakdown(c.UserContext())
	if err != nil {
		return err
	}
	resp := dto.BreakdownResponse{
		Total:      breakdown.Total,
		ByCategory: make([]dto.CountResponse, 0, len(breakdown.ByCategory)),
		ByPriority: make([]dto.CountResponse, 0, len(breakdown.ByPriority)),
	}
	for _, row := range breakdown.ByCategory {
		resp.ByCategory = append(resp.ByCategory, dto.CountResponse{Key: row.MainCategory, Count: row.Count})
	}
	for _, row := range breakdown.ByPriority {
		resp.ByPriority = append(resp.ByPriority, dto.CountResponse{Key: string(row.Priority), Count: row.Count})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Performance GET /analytics/performance.
func (h *LeaderHandler) Performance(c *fiber.Ctx) error {
	counts, err := h.analytics.TechnicianPerformance(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.PerformanceResponse, 0, len(counts))
	for _, row := range counts {
		items = append(items, dto.PerformanceResponse{UserID: row.UserID, DisplayName: row.DisplayName, Resolved: row.Resolved})
	}
	return c.JSON(fiber.Map{"data": items})
}
