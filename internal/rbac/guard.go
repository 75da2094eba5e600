package rbac

import "context"

// AuthContext is the identity resolved for one request. Built fresh per
// request, never persisted.
type AuthContext struct {
	Role     Role
	TenantID int64
	UserID   int64
	SiteID   string
}

// Reason classifies a denial.
type Reason string

const (
	// ReasonUnauthorized means no identity was presented.
	ReasonUnauthorized Reason = "unauthorized"
	// ReasonForbidden means the identity's rank or tenant does not permit
	// the action.
	ReasonForbidden Reason = "forbidden"
	// ReasonImpersonationRequired means a superuser attempted a
	// tenant-scoped mutation without an active impersonation session.
	ReasonImpersonationRequired Reason = "impersonation_required"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allow        bool
	Reason       Reason
	RequiredRole Role
}

// ImpersonationChecker reports whether the given superuser holds an
// active impersonation session scoped to the tenant.
type ImpersonationChecker interface {
	ActiveFor(ctx context.Context, userID, tenantID int64) (bool, error)
}

// Guard adjudicates role, tenant and impersonation checks. It is pure
// given its inputs apart from the impersonation state read.
type Guard struct {
	impersonation ImpersonationChecker
}

// NewGuard constructs a Guard.
func NewGuard(imp ImpersonationChecker) *Guard {
	return &Guard{impersonation: imp}
}

// Authorize decides whether ac may perform an action requiring the given
// role against routeTenantID. tenantMutating marks actions that change
// tenant-owned state; for superusers those require an active
// impersonation session scoped to the route tenant.
func (g *Guard) Authorize(ctx context.Context, ac *AuthContext, required Role, routeTenantID int64, tenantMutating bool) (Decision, error) {
	if ac == nil || !ac.Role.Valid() {
		return Decision{Reason: ReasonUnauthorized}, nil
	}
	if ac.Role.Rank() < required.Rank() {
		return Decision{Reason: ReasonForbidden, RequiredRole: required}, nil
	}

	if ac.Role == RoleSuperuser {
		if tenantMutating && routeTenantID != 0 {
			if g.impersonation == nil {
				return Decision{Reason: ReasonImpersonationRequired}, nil
			}
			active, err := g.impersonation.ActiveFor(ctx, ac.UserID, routeTenantID)
			if err != nil {
				return Decision{}, err
			}
			if !active {
				return Decision{Reason: ReasonImpersonationRequired}, nil
			}
		}
		return Decision{Allow: true}, nil
	}

	// Tenant isolation: sufficient rank never crosses a tenant boundary.
	if routeTenantID != 0 && ac.TenantID != routeTenantID {
		return Decision{Reason: ReasonForbidden, RequiredRole: required}, nil
	}
	return Decision{Allow: true}, nil
}
