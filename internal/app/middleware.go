package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/auth"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/observability"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/httpx"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFGuard      *shared.CSRFGuard
	Identity       *auth.Resolver
	Metrics        *observability.Metrics
}

type responseWriterWithCommit struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	ctx           context.Context
	req           *http.Request
	headerWritten bool
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		_ = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// MiddlewareStack installs the global middleware chain. CSRF verification
// is deliberately absent here: it is applied per route group after the
// RBAC check so an underprivileged caller is answered by the guard, not
// the token check.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	sessionMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := cfg.SessionManager.Load(ctx, r)
			if err != nil {
				cfg.Logger.Error("failed to load session", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)

			// Wrap to intercept WriteHeader so the session commits before
			// the first body byte.
			wrapped := &responseWriterWithCommit{
				ResponseWriter: w,
				sess:           sess,
				manager:        cfg.SessionManager,
				ctx:            ctx,
				req:            r.WithContext(ctx),
			}

			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}

	csrfCookieMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shared.SafeMethod(r.Method) && cfg.CSRFGuard != nil {
				cfg.CSRFGuard.EnsureCookie(w, r)
			}
			next.ServeHTTP(w, r)
		})
	}

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		sessionMiddleware,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		csrfCookieMiddleware,
	}
	if cfg.Identity != nil {
		middlewares = append(middlewares, cfg.Identity.Middleware)
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}

// CSRFVerify enforces the double-submit and origin checks on a route
// group. Mounted after the RBAC middleware so role denials short-circuit
// ahead of token evaluation.
func CSRFVerify(guard *shared.CSRFGuard, logger *slog.Logger, denials rbac.DenialRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := guard.Verify(r); err != nil {
				reason := csrfReason(err)
				if denials != nil {
					denials.GateDenial(reason)
				}
				if logger != nil {
					logger.Warn("csrf validation failed",
						slog.String("path", r.URL.Path),
						slog.String("reason", reason))
				}
				httpx.CSRFDenied(w, reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func csrfReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrCSRFTokenMissing):
		return "csrf_missing"
	case errors.Is(err, shared.ErrCSRFTokenMismatch):
		return "csrf_invalid"
	case errors.Is(err, shared.ErrOriginMismatch):
		return "origin_mismatch"
	}
	return "csrf_invalid"
}
