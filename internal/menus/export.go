package menus

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/platform/httpx"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

// ExportHandler serves the pre-migration CSV export family. Failures here
// still render the legacy {error,message,status} envelope; migrating
// these routes to problem+json is tracked separately.
type ExportHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewExportHandler builds ExportHandler instance.
func NewExportHandler(logger *slog.Logger, service *Service) *ExportHandler {
	return &ExportHandler{logger: logger, service: service}
}

// MountRoutes registers export routes.
func (h *ExportHandler) MountRoutes(r chi.Router) {
	r.Get("/menus.csv", h.exportWeek)
}

func (h *ExportHandler) exportWeek(w http.ResponseWriter, r *http.Request) {
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	week, errW := strconv.Atoi(r.URL.Query().Get("week"))
	if errY != nil || errW != nil {
		httpx.LegacyError(w, http.StatusBadRequest, "bad_request", "year and week query parameters are required")
		return
	}
	list, err := h.service.ListWeek(r.Context(), rbac.RouteTenantID(r), year, week)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.LegacyError(w, http.StatusNotFound, "not_found", "no menus for that week")
			return
		}
		h.logger.Error("export menus", slog.Any("error", err))
		httpx.LegacyError(w, http.StatusInternalServerError, "internal_error", "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="menus.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"department", "day", "lunch", "dinner", "dessert"})
	for _, menu := range list {
		for _, day := range menu.Days {
			_ = cw.Write([]string{menu.Department, day.Day, day.Lunch, day.Dinner, day.Dessert})
		}
	}
	cw.Flush()
}
