package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/school-support/internal/repository"
	apperrors "github.com/spec-kit/school-support/pkg/util"
)

// Breakdown counts non-resolved tickets by main category and by priority.
type Breakdown struct {
	ByCategory []repository.CategoryCount
	ByPriority []repository.PriorityCount
	Total      int
}

// AnalyticsService exposes aggregate ticket queries for reporting.
type AnalyticsService struct {
	tickets repository.TicketRepository
}

// NewAnalyticsService creates the service.
func NewAnalyticsService(tickets repository.TicketRepository) *AnalyticsService {
	return &AnalyticsService{tickets: tickets}
}

// Breakdown returns the category and priority distribution of non-resolved tickets.
func (s *AnalyticsService) Breakdown(ctx context.Context) (*Breakdown, error) {
	byCategory, err := s.tickets.CountByCategory(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("count by category: %w", err))
	}
	byPriority, err := s.tickets.CountByPriority(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("count by priority: %w", err))
	}
	total := 0
	for _, c := range byCategory {
		total += c.Count
	}
	return &Breakdown{ByCategory: byCategory, ByPriority: byPriority, Total: total}, nil
}

// TechnicianPerformance returns resolved ticket counts per active leader or technician.
func (s *AnalyticsService) TechnicianPerformance(ctx context.Context) ([]repository.AssigneeCount, error) {
	counts, err := s.tickets.CountResolvedByAssignee(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(fmt.Errorf("count resolved by assignee: %w", err))
	}
	return counts, nil
}
