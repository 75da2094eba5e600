package rbac

import (
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/httpx"
)

// TenantURLParam is the chi route parameter naming the owning tenant.
const TenantURLParam = "tenantID"

// DenialRecorder counts gate denials for observability.
type DenialRecorder interface {
	GateDenial(reason string)
}

// Middleware wires the Guard into HTTP handlers.
type Middleware struct {
	Guard   *Guard
	Logger  *slog.Logger
	Denials DenialRecorder
}

// Require enforces the given role on read-style routes.
func (m Middleware) Require(required Role) func(http.Handler) http.Handler {
	return m.guard(required, false)
}

// RequireMutation enforces the given role on tenant-mutating routes,
// engaging the impersonation gate for superusers.
func (m Middleware) RequireMutation(required Role) func(http.Handler) http.Handler {
	return m.guard(required, true)
}

func (m Middleware) guard(required Role, tenantMutating bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := AuthFromContext(r.Context())
			routeTenant := RouteTenantID(r)
			decision, err := m.Guard.Authorize(r.Context(), ac, required, routeTenant, tenantMutating)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorize", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !decision.Allow {
				m.deny(w, r, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, decision Decision) {
	if m.Denials != nil {
		m.Denials.GateDenial(string(decision.Reason))
	}
	if m.Logger != nil {
		m.Logger.Warn("request denied",
			slog.String("reason", string(decision.Reason)),
			slog.String("path", r.URL.Path))
	}
	switch decision.Reason {
	case ReasonUnauthorized:
		httpx.Unauthorized(w)
	case ReasonImpersonationRequired:
		httpx.ImpersonationRequired(w)
	default:
		httpx.Forbidden(w, decision.RequiredRole.String())
	}
}

// RouteTenantID parses the tenant route parameter, zero when absent.
func RouteTenantID(r *http.Request) int64 {
	raw := chi.URLParam(r, TenantURLParam)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
