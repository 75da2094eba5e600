package menus

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

// Handler manages week menu endpoints.
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

// MountRoutes registers menu routes. The caller wraps reads in the viewer
// check and writes in the editor mutation check.
func (h *Handler) MountReadRoutes(r chi.Router) {
	r.Get("/", h.listWeek)
	r.Get("/{department}/{year}/{week}", h.getMenu)
}

// MountWriteRoutes registers the mutating menu routes.
func (h *Handler) MountWriteRoutes(r chi.Router) {
	r.Post("/", h.createMenu)
	r.Put("/{department}/{year}/{week}", h.replaceMenu)
}

type menuScope struct {
	tenantID   int64
	department string
	year       int
	week       int
}

func (h *Handler) scope(r *http.Request) (menuScope, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return menuScope{}, errors.New("year must be an integer")
	}
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil || week < 1 || week > 53 {
		return menuScope{}, errors.New("week must be between 1 and 53")
	}
	return menuScope{
		tenantID:   rbac.RouteTenantID(r),
		department: chi.URLParam(r, "department"),
		year:       year,
		week:       week,
	}, nil
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	sc, err := h.scope(r)
	if err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "path", Reason: err.Error()}})
		return
	}
	menu, err := h.service.Get(r.Context(), sc.tenantID, sc.department, sc.year, sc.week)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tag := menu.Tag()
	if etag.MatchesIfNoneMatch(r.Header.Get("If-None-Match"), tag) {
		httpx.NotModified(w, tag.String())
		return
	}
	w.Header().Set("ETag", tag.String())
	httpx.JSON(w, http.StatusOK, menu)
}

type replaceRequest struct {
	Days []DayMenu `json:"days" validate:"required,min=1,max=7,dive"`
}

func (h *Handler) replaceMenu(w http.ResponseWriter, r *http.Request) {
	sc, err := h.scope(r)
	if err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "path", Reason: err.Error()}})
		return
	}

	// The If-Match gate runs before any domain logic so a blind overwrite
	// never reaches the store.
	header := r.Header.Get("If-Match")
	if header == "" {
		httpx.MissingIfMatch(w)
		return
	}

	menu, err := h.service.Get(r.Context(), sc.tenantID, sc.department, sc.year, sc.week)
	if err != nil {
		h.respondError(w, err)
		return
	}
	expected, err := etag.CheckIfMatch(header, menu.Tag())
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
		httpx.ValidationFailed(w, menuParams(err))
		return
	}

	updated, err := h.service.Replace(r.Context(), sc.tenantID, sc.department, sc.year, sc.week, req.Days, expected)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("ETag", updated.Tag().String())
	httpx.JSON(w, http.StatusOK, updated)
}

type createRequest struct {
	Department string    `json:"department" validate:"required,min=1"`
	Year       int       `json:"year" validate:"required,gte=2000,lte=2100"`
	Week       int       `json:"week" validate:"required,gte=1,lte=53"`
	Days       []DayMenu `json:"days" validate:"required,min=1,max=7,dive"`
}

func (h *Handler) createMenu(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "body", Reason: "invalid json"}})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, menuParams(err))
		return
	}
	menu, err := h.service.Create(r.Context(), &WeekMenu{
		TenantID:   rbac.RouteTenantID(r),
		Department: req.Department,
		Year:       req.Year,
		Week:       req.Week,
		Days:       req.Days,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("ETag", menu.Tag().String())
	httpx.JSON(w, http.StatusCreated, menu)
}

func (h *Handler) listWeek(w http.ResponseWriter, r *http.Request) {
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	week, errW := strconv.Atoi(r.URL.Query().Get("week"))
	if errY != nil || errW != nil {
		httpx.ValidationFailed(w, []httpx.InvalidParam{{Name: "year/week", Reason: "required integer query parameters"}})
		return
	}
	list, err := h.service.ListWeek(r.Context(), rbac.RouteTenantID(r), year, week)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"menus": list})
}

func (h *Handler) respondPrecondition(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, etag.ErrIfMatchRequired):
		httpx.MissingIfMatch(w)
	case errors.Is(err, etag.ErrStale):
		if h.conflicts != nil {
			h.conflicts.EtagConflict()
		}
		// Expected outcome of benign races, not an error.
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
		h.logger.Error("menus", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func menuParams(err error) []httpx.InvalidParam {
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
