package menus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

// RepositoryPort defines data access for week menus.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID int64, department string, year, week int) (*WeekMenu, error)
	Create(ctx context.Context, menu *WeekMenu) (*WeekMenu, error)
	// UpdateDays replaces the menu body only when the stored version still
	// equals expectedVersion; the losing writer of a race observes
	// shared.ErrVersionConflict.
	UpdateDays(ctx context.Context, tenantID int64, department string, year, week int, days []DayMenu, expectedVersion int64) (*WeekMenu, error)
	ListWeek(ctx context.Context, tenantID int64, year, week int) ([]WeekMenu, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one week menu.
func (r *Repository) Get(ctx context.Context, tenantID int64, department string, year, week int) (*WeekMenu, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, department, year, week, days, version, updated_at
		 FROM week_menus
		 WHERE tenant_id = $1 AND department = $2 AND year = $3 AND week = $4`,
		tenantID, department, year, week)
	return scanMenu(row)
}

// Create inserts a new week menu at version 1.
func (r *Repository) Create(ctx context.Context, menu *WeekMenu) (*WeekMenu, error) {
	daysJSON, err := json.Marshal(menu.Days)
	if err != nil {
		return nil, fmt.Errorf("menus: marshal days: %w", err)
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO week_menus (tenant_id, department, year, week, days, version, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 1, NOW())
		 RETURNING id, tenant_id, department, year, week, days, version, updated_at`,
		menu.TenantID, menu.Department, menu.Year, menu.Week, daysJSON)
	return scanMenu(row)
}

// UpdateDays applies the check-and-set mutation. The update statement
// itself conditions on the expected version so that of two racing writers
// holding the same token exactly one succeeds; the loser sees zero rows.
func (r *Repository) UpdateDays(ctx context.Context, tenantID int64, department string, year, week int, days []DayMenu, expectedVersion int64) (*WeekMenu, error) {
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("menus: marshal days: %w", err)
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE week_menus
		 SET days = $6, version = version + 1, updated_at = NOW()
		 WHERE tenant_id = $1 AND department = $2 AND year = $3 AND week = $4 AND version = $5
		 RETURNING id, tenant_id, department, year, week, days, version, updated_at`,
		tenantID, department, year, week, expectedVersion, daysJSON)
	menu, err := scanMenu(row)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, r.classifyMiss(ctx, tenantID, department, year, week)
		}
		return nil, err
	}
	return menu, nil
}

// classifyMiss distinguishes a lost race from a missing row.
func (r *Repository) classifyMiss(ctx context.Context, tenantID int64, department string, year, week int) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM week_menus WHERE tenant_id = $1 AND department = $2 AND year = $3 AND week = $4)`,
		tenantID, department, year, week).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return shared.ErrVersionConflict
	}
	return shared.ErrNotFound
}

// ListWeek returns every department's menu for the week.
func (r *Repository) ListWeek(ctx context.Context, tenantID int64, year, week int) ([]WeekMenu, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, department, year, week, days, version, updated_at
		 FROM week_menus WHERE tenant_id = $1 AND year = $2 AND week = $3 ORDER BY department`,
		tenantID, year, week)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var menus []WeekMenu
	for rows.Next() {
		menu, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, *menu)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return menus, nil
}

func scanMenu(row pgx.Row) (*WeekMenu, error) {
	var menu WeekMenu
	var daysJSON []byte
	err := row.Scan(&menu.ID, &menu.TenantID, &menu.Department, &menu.Year, &menu.Week,
		&daysJSON, &menu.Version, &menu.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(daysJSON, &menu.Days); err != nil {
		return nil, fmt.Errorf("menus: unmarshal days: %w", err)
	}
	return &menu, nil
}

var _ RepositoryPort = (*Repository)(nil)
