package app

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/auth"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/impersonate"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/menus"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/observability"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/schedule"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/users"
	"github.com/Henkemannn/YuplanUnified-sub003/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFGuard          *shared.CSRFGuard
	Identity           *auth.Resolver
	AuthHandler        *auth.Handler
	ImpersonateHandler *impersonate.Handler
	MenuHandler        *menus.Handler
	MenuExportHandler  *menus.ExportHandler
	ScheduleHandler    *schedule.Handler
	UserHandler        *users.Handler
	RBACMiddleware     rbac.Middleware
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Yuplan defaults. Tenant routes
// apply the RBAC middleware first and the CSRF check after it, so a role
// denial is answered before any token is inspected.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFGuard:      params.CSRFGuard,
		Identity:       params.Identity,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	var denials rbac.DenialRecorder
	if params.Metrics != nil {
		denials = params.Metrics
	}
	csrf := CSRFVerify(params.CSRFGuard, params.Logger, denials)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/impersonate", func(r chi.Router) {
		r.Use(params.RBACMiddleware.Require(rbac.RoleSuperuser))
		r.Use(csrf)
		params.ImpersonateHandler.MountRoutes(r)
	})

	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Route("/menus", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.Require(rbac.RoleViewer))
				params.MenuHandler.MountReadRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireMutation(rbac.RoleEditor))
				r.Use(csrf)
				params.MenuHandler.MountWriteRoutes(r)
			})
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.Require(rbac.RoleViewer))
				params.ScheduleHandler.MountReadRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireMutation(rbac.RoleEditor))
				r.Use(csrf)
				params.ScheduleHandler.MountWriteRoutes(r)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.Require(rbac.RoleAdmin))
				params.UserHandler.MountReadRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireMutation(rbac.RoleAdmin))
				r.Use(csrf)
				params.UserHandler.MountWriteRoutes(r)
			})
		})

		r.Route("/export", func(r chi.Router) {
			r.Use(params.RBACMiddleware.Require(rbac.RoleViewer))
			params.MenuExportHandler.MountRoutes(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.Require(rbac.RoleAdmin))
			params.JobHandler.MountRoutes(r)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
