package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/school-support/internal/api/dto"
	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/service"
)

// TicketsHandler manages ticket endpoints shared by every role.
type TicketsHandler struct {
	service *service.TicketService
	assign  *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, assignmentService *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, assign: assignmentService}
}

// SelfHelp POST /tickets/self-help.
func (h *TicketsHandler) SelfHelp(c *fiber.Ctx) error {
	var req dto.SelfHelpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	suggestion, err := h.service.SuggestSelfHelp(c.UserContext(), req.Description)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SelfHelpResponse{Suggestion: suggestion}})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	input := service.TicketCreateInput{
		Description: req.Description,
		Location:    req.Location,
		Suggestion:  req.Suggestion,
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), actor, input, service.Answered(req.SelfResolved))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListMine GET /tickets/mine.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListMyTickets(c.UserContext(), actor, listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(tickets)})
}

// WorkQueue GET /work/queue.
func (h *TicketsHandler) WorkQueue(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListWorkQueue(c.UserContext(), actor, listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Cancel POST /tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Cancel(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Progress POST /tickets/:id/progress.
func (h *TicketsHandler) Progress(c *fiber.Ctx) error {
	return h.withNote(c, h.service.Progress)
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	return h.withNote(c, h.service.Resolve)
}

// Remark POST /tickets/:id/remarks.
func (h *TicketsHandler) Remark(c *fiber.Ctx) error {
	return h.withNote(c, h.service.Remark)
}

// RequestReassignment POST /tickets/:id/reassign.
func (h *TicketsHandler) RequestReassignment(c *fiber.Ctx) error {
	return h.withNote(c, h.assign.RequestReassignment)
}

type noteOperation func(ctx context.Context, actor domain.Actor, ticketID, note string) (*domain.Ticket, error)

func (h *TicketsHandler) withNote(c *fiber.Ctx, op noteOperation) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.NoteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := op(c.UserContext(), actor, c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}
