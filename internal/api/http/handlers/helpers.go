package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/school-support/internal/api/dto"
	"github.com/spec-kit/school-support/internal/auth"
	"github.com/spec-kit/school-support/internal/domain"
	"github.com/spec-kit/school-support/internal/service"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func listOptions(c *fiber.Ctx) service.ListOptions {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return service.ListOptions{Limit: pageSize, Offset: (page - 1) * pageSize}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	remarks := make([]dto.RemarkResponse, 0, len(ticket.Remarks))
	for _, r := range ticket.Remarks {
		remarks = append(remarks, dto.RemarkResponse{At: r.At, Author: r.Author, Text: r.Text})
	}
	return dto.TicketResponse{
		ID:           ticket.ID,
		CreatorID:    ticket.CreatorID,
		AssigneeID:   ticket.AssigneeID,
		MainCategory: ticket.MainCategory,
		SubCategory:  ticket.SubCategory,
		Priority:     string(ticket.Priority),
		Description:  ticket.Description,
		Location:     ticket.Location,
		Status:       ticket.Status.String(),
		Remarks:      remarks,
		RemarkLog:    ticket.Remarks.String(),
		AISummary:    ticket.AISummary,
		CreatedAt:    ticket.CreatedAt,
		ResolvedAt:   ticket.ResolvedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

func ticketList(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        int(user.Role),
		RoleName:    user.Role.String(),
		FirstLogin:  user.FirstLogin,
		Active:      user.Active,
		CreatedAt:   user.CreatedAt,
	}
}
