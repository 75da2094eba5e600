package menus

import (
	"context"
)

// Service handles week menu business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns one week menu.
func (s *Service) Get(ctx context.Context, tenantID int64, department string, year, week int) (*WeekMenu, error) {
	return s.repo.Get(ctx, tenantID, department, year, week)
}

// Create inserts a new week menu.
func (s *Service) Create(ctx context.Context, menu *WeekMenu) (*WeekMenu, error) {
	return s.repo.Create(ctx, menu)
}

// Replace swaps the menu body conditioned on the expected version.
func (s *Service) Replace(ctx context.Context, tenantID int64, department string, year, week int, days []DayMenu, expectedVersion int64) (*WeekMenu, error) {
	return s.repo.UpdateDays(ctx, tenantID, department, year, week, days, expectedVersion)
}

// ListWeek returns all menus for the week.
func (s *Service) ListWeek(ctx context.Context, tenantID int64, year, week int) ([]WeekMenu, error) {
	return s.repo.ListWeek(ctx, tenantID, year, week)
}
