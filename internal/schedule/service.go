package schedule

import "context"

// Service handles week schedule business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns one week schedule.
func (s *Service) Get(ctx context.Context, tenantID int64, department string, year, week int) (*WeekSchedule, error) {
	return s.repo.Get(ctx, tenantID, department, year, week)
}

// Create inserts a new schedule.
func (s *Service) Create(ctx context.Context, sched *WeekSchedule) (*WeekSchedule, error) {
	return s.repo.Create(ctx, sched)
}

// Replace swaps the roster conditioned on the expected version.
func (s *Service) Replace(ctx context.Context, tenantID int64, department string, year, week int, shifts []Shift, expectedVersion int64) (*WeekSchedule, error) {
	return s.repo.UpdateShifts(ctx, tenantID, department, year, week, shifts, expectedVersion)
}
