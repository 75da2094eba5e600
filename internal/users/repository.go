package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

// Update carries the mutable fields of a user record.
type Update struct {
	Name     string
	Role     string
	IsActive bool
}

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, tenantID int64) ([]User, error)
	GetUser(ctx context.Context, tenantID, userID int64) (*User, error)
	// UpdateUser applies the check-and-set mutation; the losing writer of
	// a race observes shared.ErrVersionConflict.
	UpdateUser(ctx context.Context, tenantID, userID int64, upd Update, expectedVersion int64) (*User, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, tenant_id, email, name, role, COALESCE(site_id, ''), is_active, version, created_at, updated_at`

// ListUsers returns all users belonging to the tenant.
func (r *Repository) ListUsers(ctx context.Context, tenantID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches one user scoped to the tenant.
func (r *Repository) GetUser(ctx context.Context, tenantID, userID int64) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, userID)
	return scanUser(row)
}

// UpdateUser conditions the update on the expected version.
func (r *Repository) UpdateUser(ctx context.Context, tenantID, userID int64, upd Update, expectedVersion int64) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET name = $4, role = $5, is_active = $6, version = version + 1, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2 AND version = $3
		 RETURNING `+userColumns,
		tenantID, userID, expectedVersion, upd.Name, upd.Role, upd.IsActive)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			var exists bool
			if probeErr := r.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND id = $2)`,
				tenantID, userID).Scan(&exists); probeErr != nil {
				return nil, probeErr
			}
			if exists {
				return nil, shared.ErrVersionConflict
			}
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.TenantID, &user.Email, &user.Name, &user.Role,
		&user.SiteID, &user.IsActive, &user.Version, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

var _ RepositoryPort = (*Repository)(nil)
