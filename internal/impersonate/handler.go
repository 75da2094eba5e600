package impersonate

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/httpx"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
)

// Handler exposes the start/stop/status endpoints, superuser only.
type Handler struct {
	logger    *slog.Logger
	manager   *Manager
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	return &Handler{logger: logger, manager: manager, validator: validator.New()}
}

// MountRoutes registers impersonation routes on the provided router. The
// caller wraps them in the superuser rank check.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.start)
	r.Delete("/", h.stop)
	r.Get("/", h.status)
}

type startRequest struct {
	TenantID int64  `json:"tenant_id" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"required,min=3"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	ac := rbac.AuthFromContext(r.Context())
	if ac == nil {
		httpx.Unauthorized(w)
		return
	}
	var req startRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "body", Reason: "invalid json"}})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, invalidParams(err))
		return
	}

	sess, err := h.manager.Start(r.Context(), ac.UserID, req.TenantID, req.Reason)
	switch {
	case errors.Is(err, ErrAlreadyActive):
		httpx.Problem(w, http.StatusConflict, "Conflict", "an impersonation session is already active")
		return
	case errors.Is(err, ErrReasonRequired):
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "reason", Reason: "required"}})
		return
	case err != nil:
		h.logger.Error("start impersonation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, sess)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	ac := rbac.AuthFromContext(r.Context())
	if ac == nil {
		httpx.Unauthorized(w)
		return
	}
	if err := h.manager.Stop(r.Context(), ac.UserID); err != nil {
		if errors.Is(err, ErrNotActive) {
			httpx.NotFound(w)
			return
		}
		h.logger.Error("stop impersonation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	ac := rbac.AuthFromContext(r.Context())
	if ac == nil {
		httpx.Unauthorized(w)
		return
	}
	sess, active, err := h.manager.Status(r.Context(), ac.UserID)
	if err != nil {
		h.logger.Error("impersonation status", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if !active {
		httpx.JSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"active": true, "session": sess})
}

func invalidParams(err error) []httpx.InvalidParam {
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
