package schedule_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/schedule"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
	_ "github.com/Henkemannn/YuplanUnified-sub003/testing"
)

type mockRepo struct {
	mu    sync.Mutex
	sched *schedule.WeekSchedule
}

func (m *mockRepo) Get(_ context.Context, tenantID int64, department string, year, week int) (*schedule.WeekSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sched
	if s == nil || s.TenantID != tenantID || s.Department != department || s.Year != year || s.Week != week {
		return nil, shared.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, sched *schedule.WeekSchedule) (*schedule.WeekSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sched
	cp.ID = 1
	cp.Version = 1
	m.sched = &cp
	out := cp
	return &out, nil
}

func (m *mockRepo) UpdateShifts(_ context.Context, tenantID int64, department string, year, week int, shifts []schedule.Shift, expectedVersion int64) (*schedule.WeekSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sched
	if s == nil || s.TenantID != tenantID || s.Department != department || s.Year != year || s.Week != week {
		return nil, shared.ErrNotFound
	}
	if s.Version != expectedVersion {
		return nil, shared.ErrVersionConflict
	}
	s.Shifts = shifts
	s.Version++
	cp := *s
	return &cp, nil
}

func newScheduleRouter(repo *mockRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := schedule.NewHandler(logger, schedule.NewService(repo), nil)
	r := chi.NewRouter()
	r.Route("/tenants/{tenantID}/schedules", func(r chi.Router) {
		h.MountReadRoutes(r)
		h.MountWriteRoutes(r)
	})
	return r
}

func seedSchedule(t *testing.T, repo *mockRepo) *schedule.WeekSchedule {
	t.Helper()
	sched, err := repo.Create(context.Background(), &schedule.WeekSchedule{
		TenantID:   4,
		Department: "north",
		Year:       2026,
		Week:       9,
		Shifts:     []schedule.Shift{{Day: "monday", Meal: "lunch", Staff: "Alex"}},
	})
	require.NoError(t, err)
	return sched
}

func TestGetScheduleConditional(t *testing.T) {
	repo := &mockRepo{}
	sched := seedSchedule(t, repo)
	router := newScheduleRouter(repo)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/tenants/4/schedules/north/2026/9", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, `W/"schedule:4:north:2026:9.v1"`, res.Header().Get("ETag"))

	req := httptest.NewRequest(http.MethodGet, "/tenants/4/schedules/north/2026/9", nil)
	req.Header.Set("If-None-Match", sched.Tag().String())
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNotModified, res.Code)
}

func TestReplaceScheduleConditionalWrite(t *testing.T) {
	repo := &mockRepo{}
	sched := seedSchedule(t, repo)
	router := newScheduleRouter(repo)

	body, _ := json.Marshal(map[string]any{
		"shifts": []map[string]string{{"day": "tuesday", "meal": "dinner", "staff": "Kim"}},
	})

	// No If-Match is rejected before anything else happens.
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/tenants/4/schedules/north/2026/9", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, res.Code)

	req := httptest.NewRequest(http.MethodPut, "/tenants/4/schedules/north/2026/9", bytes.NewReader(body))
	req.Header.Set("If-Match", sched.Tag().String())
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, `W/"schedule:4:north:2026:9.v2"`, res.Header().Get("ETag"))

	// The consumed token is now stale.
	req = httptest.NewRequest(http.MethodPut, "/tenants/4/schedules/north/2026/9", bytes.NewReader(body))
	req.Header.Set("If-Match", sched.Tag().String())
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusPreconditionFailed, res.Code)
}

func TestReplaceScheduleRejectsBadShift(t *testing.T) {
	repo := &mockRepo{}
	sched := seedSchedule(t, repo)
	router := newScheduleRouter(repo)

	body, _ := json.Marshal(map[string]any{
		"shifts": []map[string]string{{"day": "monday", "meal": "brunch", "staff": "Kim"}},
	})
	req := httptest.NewRequest(http.MethodPut, "/tenants/4/schedules/north/2026/9", bytes.NewReader(body))
	req.Header.Set("If-Match", sched.Tag().String())
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}
