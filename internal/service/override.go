package service

import (
	"context"
	"time"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

// OverrideRepository defines the persistence operations needed by
// OverrideService.
type OverrideRepository interface {
	// Get returns the current override, nil when unset.
	Get(ctx context.Context) (*models.AdminOverride, error)
	// Set replaces the singleton override.
	Set(ctx context.Context, o models.AdminOverride) error
	// Clear removes the override.
	Clear(ctx context.Context) error
}

// OverrideService implements the singleton admin week override.
type OverrideService struct {
	repo OverrideRepository
	now  func() time.Time
}

// NewOverrideService constructs an OverrideService with the provided
// repository.
func NewOverrideService(repo OverrideRepository) *OverrideService {
	return &OverrideService{repo: repo, now: time.Now}
}

// Get returns the current override, nil when unset.
func (s *OverrideService) Get(ctx context.Context) (*models.AdminOverride, error) {
	return s.repo.Get(ctx)
}

// Apply sets or clears the override: null payload fields clear it, per the
// wire contract.
func (s *OverrideService) Apply(ctx context.Context, p models.OverridePayload) (*models.AdminOverride, error) {
	if p.AdminName == nil || p.OverrideWeekStart == nil {
		if err := s.repo.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if *p.AdminName == "" {
		return nil, &ValidationError{Message: "adminName is required"}
	}
	if _, err := time.ParseInLocation("2006-01-02", *p.OverrideWeekStart, time.UTC); err != nil {
		return nil, &ValidationError{Message: "overrideWeekStart must be a YYYY-MM-DD date"}
	}
	o := models.AdminOverride{
		AdminName:         *p.AdminName,
		OverrideWeekStart: *p.OverrideWeekStart,
		Timestamp:         s.now().Unix(),
	}
	if err := s.repo.Set(ctx, o); err != nil {
		return nil, err
	}
	return &o, nil
}
