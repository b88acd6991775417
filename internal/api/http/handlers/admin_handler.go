package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/school-support/internal/api/dto"
	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/service"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

// AdminHandler exposes account management, archival and the full ticket list.
type AdminHandler struct {
	users   *service.UserService
	tickets *service.TicketService
	archive *service.ArchiveService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(users *service.UserService, tickets *service.TicketService, archive *service.ArchiveService) *AdminHandler {
	return &AdminHandler{users: users, tickets: tickets, archive: archive}
}

// CreateUser POST /admin/users.
func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.CreateUser(c.UserContext(), actor, createUserInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// ImportUsers POST /admin/users/import.
func (h *AdminHandler) ImportUsers(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ImportUsersRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	inputs := make([]service.CreateUserInput, 0, len(req.Users))
	for _, row := range req.Users {
		inputs = append(inputs, createUserInput(row))
	}
	result, err := h.users.ImportUsers(c.UserContext(), actor, inputs)
	if err != nil {
		return err
	}
	resp := dto.ImportUsersResponse{
		Created: make([]dto.UserResponse, 0, len(result.Created)),
		Skipped: result.Skipped,
	}
	for i := range result.Created {
		resp.Created = append(resp.Created, userResponse(&result.Created[i]))
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListUsers GET /admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	opts := listOptions(c)
	filters := service.UserListFilters{
		Search:     c.Query("search"),
		ActiveOnly: c.QueryBool("active_only", false),
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}
	if raw := c.Query("role"); raw != "" {
		role, err := domain.ParseRole(parseInt(raw, 0))
		if err != nil {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": raw})
		}
		filters.Role = &role
	}
	users, err := h.users.ListUsers(c.UserContext(), actor, filters)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeactivateUser POST /admin/users/:id/deactivate.
func (h *AdminHandler) DeactivateUser(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	user, err := h.users.DeactivateUser(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// ResetPassword POST /admin/users/:id/reset-password.
func (h *AdminHandler) ResetPassword(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	user, err := h.users.ResetPassword(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// ListTickets GET /admin/tickets?status=New,Assigned.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var statuses []domain.TicketStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := domain.ParseTicketStatus(strings.TrimSpace(part))
			if err != nil {
				return apperrors.NewValidationError("unknown status", map[string]any{"status": part})
			}
			statuses = append(statuses, status)
		}
	}
	tickets, err := h.tickets.ListAllTickets(c.UserContext(), actor, statuses, listOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(tickets)})
}

// Archive POST /admin/archive.
func (h *AdminHandler) Archive(c *fiber.Ctx) error {
	var req dto.ArchiveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	months, err := archiveMonths(req)
	if err != nil {
		return err
	}
	archived, err := h.archive.Archive(c.UserContext(), months)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ArchiveResponse{Months: months, Archived: archived}})
}

// SearchArchive GET /admin/archive?q=keyword.
func (h *AdminHandler) SearchArchive(c *fiber.Ctx) error {
	records, err := h.archive.SearchArchive(c.UserContext(), c.Query("q"), listOptions(c))
	if err != nil {
		return err
	}
	items := make([]dto.ArchiveRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, dto.ArchiveRecordResponse{
			ID:               rec.ID,
			OriginalTicketID: rec.OriginalTicketID,
			Summary:          rec.Summary,
			MainCategory:     rec.MainCategory,
			SubCategory:      rec.SubCategory,
			Year:             rec.Year,
			FinalStatus:      rec.FinalStatus.String(),
			ArchivedAt:       rec.ArchivedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func archiveMonths(req dto.ArchiveRequest) (int, error) {
	switch {
	case req.Months != nil && req.Preset != "":
		return 0, apperrors.NewValidationError("give either months or preset", nil)
	case req.Months != nil:
		return *req.Months, nil
	case req.Preset == "half_year":
		return service.ArchivePresetHalfYear, nil
	case req.Preset == "year":
		return service.ArchivePresetYear, nil
	case req.Preset == "all":
		return service.ArchivePresetAll, nil
	default:
		return 0, apperrors.NewValidationError("months or preset required", nil)
	}
}

func createUserInput(req dto.CreateUserRequest) service.CreateUserInput {
	return service.CreateUserInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Role:        domain.Role(req.Role),
	}
}
