package users

import (
	"context"
	"fmt"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
)

// Service handles user management logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users in the tenant.
func (s *Service) ListUsers(ctx context.Context, tenantID int64) ([]User, error) {
	return s.repo.ListUsers(ctx, tenantID)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, tenantID, userID int64) (*User, error) {
	return s.repo.GetUser(ctx, tenantID, userID)
}

// UpdateUser applies the conditional update. The stored role spelling
// must canonicalize; any alias in the table is acceptable.
func (s *Service) UpdateUser(ctx context.Context, tenantID, userID int64, upd Update, expectedVersion int64) (*User, error) {
	if !rbac.Canonicalize(upd.Role).Valid() {
		return nil, fmt.Errorf("users: %w: unknown role %q", ErrUnknownRole, upd.Role)
	}
	return s.repo.UpdateUser(ctx, tenantID, userID, upd, expectedVersion)
}
