package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/impersonate"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/httpx"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/ratelimit"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

// RouteClassLogin keys login attempts in the rate limiter.
const RouteClassLogin = "login"

// ImpersonationEnder releases any impersonation overlay held by a user.
// The overlay is owned by the login session, so it must not outlive it.
type ImpersonationEnder interface {
	Stop(ctx context.Context, userID int64) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	limiter        *ratelimit.Limiter
	impersonations ImpersonationEnder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		limiter:        limiter,
		validator:      validator.New(),
	}
}

// WithImpersonations wires the impersonation manager so ending a login
// session also ends any overlay the user still holds.
func (h *Handler) WithImpersonations(m ImpersonationEnder) *Handler {
	h.impersonations = m
	return h
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	UserID   int64  `json:"user_id"`
	TenantID int64  `json:"tenant_id"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "body", Reason: "invalid json"}})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, loginParams(err))
		return
	}

	key := limiterKey(req.Email, r)
	allowed, retryAfter, err := h.limiter.Allow(r.Context(), RouteClassLogin, key)
	if err != nil {
		h.logger.Error("rate limit check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if !allowed {
		httpx.RateLimited(w, retryAfter)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if ferr := h.limiter.Failure(r.Context(), RouteClassLogin, key); ferr != nil {
			h.logger.Error("record login failure", slog.Any("error", ferr))
		}
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}
	_ = h.limiter.Success(r.Context(), RouteClassLogin, key)

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.Set(shared.SessionKeyRole, user.RawRole)
	sess.Set(shared.SessionKeyTenant, strconv.FormatInt(user.TenantID, 10))
	if user.SiteID != "" {
		sess.Set(shared.SessionKeySite, user.SiteID)
	}

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, loginResponse{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.RawRole,
		Name:     user.Name,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.endImpersonation(r.Context(), sess)
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// endImpersonation drops any overlay owned by the session being ended.
// Most users hold none; that case is not an error.
func (h *Handler) endImpersonation(ctx context.Context, sess *shared.Session) {
	if h.impersonations == nil {
		return
	}
	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return
	}
	if err := h.impersonations.Stop(ctx, userID); err != nil && !errors.Is(err, impersonate.ErrNotActive) {
		h.logger.Warn("end impersonation on logout", slog.Any("error", err))
	}
}

// LoginForTest exposes the login handler for tests.
func (h *Handler) LoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// LogoutForTest exposes the logout handler for tests.
func (h *Handler) LogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}

// limiterKey combines the claimed account with the client address so a
// single host cannot walk the account space unthrottled.
func limiterKey(email string, r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return email + "|" + host
}

func loginParams(err error) []httpx.InvalidParam {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []httpx.InvalidParam{{Name: "body", Reason: err.Error()}}
	}
	params := make([]httpx.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		params = append(params, httpx.InvalidParam{Name: fe.Field(), Reason: fe.Tag()})
	}
	return params
}
