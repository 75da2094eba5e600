package users

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/etag"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/httpx"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

// ErrUnknownRole rejects role spellings outside the alias table.
var ErrUnknownRole = errors.New("unknown role")

// ConflictRecorder counts lost write races for observability.
type ConflictRecorder interface {
	EtagConflict()
}

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	conflicts ConflictRecorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, conflicts ConflictRecorder) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), conflicts: conflicts}
}

// MountReadRoutes registers read routes.
func (h *Handler) MountReadRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Get("/{userID}", h.getUser)
}

// MountWriteRoutes registers mutating routes.
func (h *Handler) MountWriteRoutes(r chi.Router) {
	r.Patch("/{userID}", h.updateUser)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), rbac.RouteTenantID(r))
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "userID", Reason: "must be an integer"}})
		return
	}
	user, err := h.service.GetUser(r.Context(), rbac.RouteTenantID(r), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tag := user.Tag()
	if etag.MatchesIfNoneMatch(r.Header.Get("If-None-Match"), tag) {
		httpx.NotModified(w, tag.String())
		return
	}
	w.Header().Set("ETag", tag.String())
	httpx.JSON(w, http.StatusOK, user)
}

type updateRequest struct {
	Name     string `json:"name" validate:"required,min=1"`
	Role     string `json:"role" validate:"required"`
	IsActive bool   `json:"is_active"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "userID", Reason: "must be an integer"}})
		return
	}

	header := r.Header.Get("If-Match")
	if header == "" {
		httpx.MissingIfMatch(w)
		return
	}

	tenantID := rbac.RouteTenantID(r)
	user, err := h.service.GetUser(r.Context(), tenantID, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	expected, err := etag.CheckIfMatch(header, user.Tag())
	if err != nil {
		h.respondPrecondition(w, err)
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "body", Reason: "invalid json"}})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, userParams(err))
		return
	}

	updated, err := h.service.UpdateUser(r.Context(), tenantID, userID,
		Update{Name: req.Name, Role: req.Role, IsActive: req.IsActive}, expected)
	if err != nil {
		if errors.Is(err, ErrUnknownRole) {
			httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "role", Reason: "unknown role"}})
			return
		}
		h.respondError(w, err)
		return
	}
	w.Header().Set("ETag", updated.Tag().String())
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) respondPrecondition(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, etag.ErrIfMatchRequired):
		httpx.MissingIfMatch(w)
	case errors.Is(err, etag.ErrStale):
		if h.conflicts != nil {
			h.conflicts.EtagConflict()
		}
		h.logger.Debug("stale if-match token")
		httpx.ETagMismatch(w)
	case errors.Is(err, etag.ErrIdentityMismatch), errors.Is(err, etag.ErrMalformed):
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "If-Match", Reason: "tag does not name this resource"}})
	default:
		h.logger.Error("if-match check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.NotFound(w)
	case errors.Is(err, shared.ErrVersionConflict):
		if h.conflicts != nil {
			h.conflicts.EtagConflict()
		}
		h.logger.Debug("conditional update lost race")
		httpx.ETagMismatch(w)
	default:
		h.logger.Error("users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func userParams(err error) []httpx.InvalidParam {
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
