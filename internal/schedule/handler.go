package schedule

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

// ConflictRecorder counts lost write races for observability.
type ConflictRecorder interface {
	EtagConflict()
}

// Handler manages week schedule endpoints.
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
	r.Get("/{department}/{year}/{week}", h.getSchedule)
}

// MountWriteRoutes registers mutating routes.
func (h *Handler) MountWriteRoutes(r chi.Router) {
	r.Post("/", h.createSchedule)
	r.Put("/{department}/{year}/{week}", h.replaceSchedule)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	sched, err := h.service.Get(r.Context(), sc.tenantID, sc.department, sc.year, sc.week)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tag := sched.Tag()
	if etag.MatchesIfNoneMatch(r.Header.Get("If-None-Match"), tag) {
		httpx.NotModified(w, tag.String())
		return
	}
	w.Header().Set("ETag", tag.String())
	httpx.JSON(w, http.StatusOK, sched)
}

type replaceRequest struct {
	Shifts []Shift `json:"shifts" validate:"required,min=1,dive"`
}

func (h *Handler) replaceSchedule(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	header := r.Header.Get("If-Match")
	if header == "" {
		httpx.MissingIfMatch(w)
		return
	}
	sched, err := h.service.Get(r.Context(), sc.tenantID, sc.department, sc.year, sc.week)
	if err != nil {
		h.respondError(w, err)
		return
	}
	expected, err := etag.CheckIfMatch(header, sched.Tag())
	if err != nil {
		h.respondPrecondition(w, err)
		return
	}
	var req replaceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "body", Reason: "invalid json"}})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, scheduleParams(err))
		return
	}
	updated, err := h.service.Replace(r.Context(), sc.tenantID, sc.department, sc.year, sc.week, req.Shifts, expected)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("ETag", updated.Tag().String())
	httpx.JSON(w, http.StatusOK, updated)
}

type createRequest struct {
	Department string  `json:"department" validate:"required,min=1"`
	Year       int     `json:"year" validate:"required,gte=2000,lte=2100"`
	Week       int     `json:"week" validate:"required,gte=1,lte=53"`
	Shifts     []Shift `json:"shifts" validate:"required,min=1,dive"`
}

func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "body", Reason: "invalid json"}})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, scheduleParams(err))
		return
	}
	sched, err := h.service.Create(r.Context(), &WeekSchedule{
		TenantID:   rbac.RouteTenantID(r),
		Department: req.Department,
		Year:       req.Year,
		Week:       req.Week,
		Shifts:     req.Shifts,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("ETag", sched.Tag().String())
	httpx.JSON(w, http.StatusCreated, sched)
}

type scheduleScope struct {
	tenantID   int64
	department string
	year       int
	week       int
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (scheduleScope, bool) {
	year, errY := strconv.Atoi(chi.URLParam(r, "year"))
	week, errW := strconv.Atoi(chi.URLParam(r, "week"))
	if errY != nil || errW != nil || week < 1 || week > 53 {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "path", Reason: "year and week must be integers, week 1-53"}})
		return scheduleScope{}, false
	}
	return scheduleScope{
		tenantID:   rbac.RouteTenantID(r),
		department: chi.URLParam(r, "department"),
		year:       year,
		week:       week,
	}, true
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
		h.logger.Error("schedule", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func scheduleParams(err error) []httpx.InvalidParam {
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
