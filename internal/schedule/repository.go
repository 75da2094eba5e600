package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

// RepositoryPort defines data access for week schedules.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID int64, department string, year, week int) (*WeekSchedule, error)
	Create(ctx context.Context, sched *WeekSchedule) (*WeekSchedule, error)
	UpdateShifts(ctx context.Context, tenantID int64, department string, year, week int, shifts []Shift, expectedVersion int64) (*WeekSchedule, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one week schedule.
func (r *Repository) Get(ctx context.Context, tenantID int64, department string, year, week int) (*WeekSchedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, department, year, week, shifts, version, updated_at
		 FROM week_schedules
		 WHERE tenant_id = $1 AND department = $2 AND year = $3 AND week = $4`,
		tenantID, department, year, week)
	return scanSchedule(row)
}

// Create inserts a new schedule at version 1.
func (r *Repository) Create(ctx context.Context, sched *WeekSchedule) (*WeekSchedule, error) {
	shiftsJSON, err := json.Marshal(sched.Shifts)
	if err != nil {
		return nil, fmt.Errorf("schedule: marshal shifts: %w", err)
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO week_schedules (tenant_id, department, year, week, shifts, version, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 1, NOW())
		 RETURNING id, tenant_id, department, year, week, shifts, version, updated_at`,
		sched.TenantID, sched.Department, sched.Year, sched.Week, shiftsJSON)
	return scanSchedule(row)
}

// UpdateShifts applies the check-and-set mutation; the losing writer of a
// race observes shared.ErrVersionConflict.
func (r *Repository) UpdateShifts(ctx context.Context, tenantID int64, department string, year, week int, shifts []Shift, expectedVersion int64) (*WeekSchedule, error) {
	shiftsJSON, err := json.Marshal(shifts)
	if err != nil {
		return nil, fmt.Errorf("schedule: marshal shifts: %w", err)
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE week_schedules
		 SET shifts = $6, version = version + 1, updated_at = NOW()
		 WHERE tenant_id = $1 AND department = $2 AND year = $3 AND week = $4 AND version = $5
		 RETURNING id, tenant_id, department, year, week, shifts, version, updated_at`,
		tenantID, department, year, week, expectedVersion, shiftsJSON)
	sched, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			var exists bool
			if probeErr := r.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM week_schedules WHERE tenant_id = $1 AND department = $2 AND year = $3 AND week = $4)`,
				tenantID, department, year, week).Scan(&exists); probeErr != nil {
				return nil, probeErr
			}
			if exists {
				return nil, shared.ErrVersionConflict
			}
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return sched, nil
}

func scanSchedule(row pgx.Row) (*WeekSchedule, error) {
	var sched WeekSchedule
	var shiftsJSON []byte
	err := row.Scan(&sched.ID, &sched.TenantID, &sched.Department, &sched.Year, &sched.Week,
		&shiftsJSON, &sched.Version, &sched.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(shiftsJSON, &sched.Shifts); err != nil {
		return nil, fmt.Errorf("schedule: unmarshal shifts: %w", err)
	}
	return &sched, nil
}

var _ RepositoryPort = (*Repository)(nil)
