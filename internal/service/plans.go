package service

import (
	"context"
	"time"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
	"github.com/samplerpa08-cpu/tourplan/internal/week"
)

// PlanRepository defines the persistence operations needed by PlanService.
type PlanRepository interface {
	// PlansForWeek returns every user's plan for one week, keyed by name.
	PlansForWeek(ctx context.Context, weekStart string) (map[string][]string, error)
	// UpsertPlan overwrites one user's plan for one week.
	UpsertPlan(ctx context.Context, weekStart, userName string, locations []string) error
	// AddCustomLocation records a one-off location for a single day.
	AddCustomLocation(ctx context.Context, userName, weekStart, dayDate, location string) error
}

// PlanService implements weekly-plan operations on top of a PlanRepository.
type PlanService struct {
	repo PlanRepository
}

// NewPlanService constructs a PlanService with the provided repository.
func NewPlanService(repo PlanRepository) *PlanService {
	return &PlanService{repo: repo}
}

// PlansForWeek returns every user's plan for one week.
func (s *PlanService) PlansForWeek(ctx context.Context, weekStart string) (map[string][]string, error) {
	if !week.ValidID(weekStart) {
		return nil, &ValidationError{Message: "weekStart must be a YYYYMMDD week id"}
	}
	return s.repo.PlansForWeek(ctx, weekStart)
}

// SetPlan overwrites one user's full 7-slot plan for one week. Partial
// plans are rejected; overwriting with the same plan is a no-op.
func (s *PlanService) SetPlan(ctx context.Context, weekStart, userName string, locations []string) error {
	if !week.ValidID(weekStart) {
		return &ValidationError{Message: "weekStart must be a YYYYMMDD week id"}
	}
	if userName == "" {
		return &ValidationError{Message: "name is required"}
	}
	if len(locations) != models.DaysPerWeek {
		return &ValidationError{Message: "locationsArray must have exactly 7 entries"}
	}
	return s.repo.UpsertPlan(ctx, weekStart, userName, locations)
}

// AddCustomLocation records a one-off location for one day of one week.
func (s *PlanService) AddCustomLocation(ctx context.Context, userName, weekStart, dayDate, location string) error {
	if userName == "" || location == "" {
		return &ValidationError{Message: "name and location are required"}
	}
	if !week.ValidID(weekStart) {
		return &ValidationError{Message: "weekStart must be a YYYYMMDD week id"}
	}
	if _, err := time.ParseInLocation("2006-01-02", dayDate, time.UTC); err != nil {
		return &ValidationError{Message: "dayDate must be a YYYY-MM-DD date"}
	}
	return s.repo.AddCustomLocation(ctx, userName, weekStart, dayDate, location)
}
