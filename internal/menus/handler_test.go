package menus_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/menus"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
	_ "github.com/Henkemannn/YuplanUnified-sub003/testing"
)

type mockRepo struct {
	mu     sync.Mutex
	items  map[string]*menus.WeekMenu
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]*menus.WeekMenu), nextID: 1}
}

func key(tenantID int64, department string, year, week int) string {
	return fmt.Sprintf("%d/%s/%d/%d", tenantID, department, year, week)
}

func (m *mockRepo) Get(_ context.Context, tenantID int64, department string, year, week int) (*menus.WeekMenu, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	menu, ok := m.items[key(tenantID, department, year, week)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *menu
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, menu *menus.WeekMenu) (*menus.WeekMenu, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *menu
	cp.ID = m.nextID
	m.nextID++
	cp.Version = 1
	cp.UpdatedAt = time.Now()
	m.items[key(cp.TenantID, cp.Department, cp.Year, cp.Week)] = &cp
	out := cp
	return &out, nil
}

func (m *mockRepo) UpdateDays(_ context.Context, tenantID int64, department string, year, week int, days []menus.DayMenu, expectedVersion int64) (*menus.WeekMenu, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	menu, ok := m.items[key(tenantID, department, year, week)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if menu.Version != expectedVersion {
		return nil, shared.ErrVersionConflict
	}
	menu.Days = days
	menu.Version++
	menu.UpdatedAt = time.Now()
	cp := *menu
	return &cp, nil
}

func (m *mockRepo) ListWeek(_ context.Context, tenantID int64, year, week int) ([]menus.WeekMenu, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []menus.WeekMenu
	for _, menu := range m.items {
		if menu.TenantID == tenantID && menu.Year == year && menu.Week == week {
			out = append(out, *menu)
		}
	}
	return out, nil
}

type countingConflicts struct {
	mu sync.Mutex
	n  int
}

func (c *countingConflicts) EtagConflict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *countingConflicts) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newMenuRouter(repo *mockRepo, conflicts *countingConflicts) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := menus.NewHandler(logger, menus.NewService(repo), conflicts)
	r := chi.NewRouter()
	r.Route("/tenants/{tenantID}/menus", func(r chi.Router) {
		h.MountReadRoutes(r)
		h.MountWriteRoutes(r)
	})
	return r
}

func seedMenu(t *testing.T, repo *mockRepo) *menus.WeekMenu {
	t.Helper()
	menu, err := repo.Create(context.Background(), &menus.WeekMenu{
		TenantID:   12,
		Department: "kitchen",
		Year:       2026,
		Week:       35,
		Days:       []menus.DayMenu{{Day: "monday", Lunch: "fish soup"}},
	})
	require.NoError(t, err)
	return menu
}

func TestGetMenuSetsETag(t *testing.T) {
	repo := newMockRepo()
	seedMenu(t, repo)
	router := newMenuRouter(repo, &countingConflicts{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/tenants/12/menus/kitchen/2026/35", nil))

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, `W/"menu:12:kitchen:2026:35.v1"`, res.Header().Get("ETag"))

	var body menus.WeekMenu
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Version)
}

func TestGetMenuNotModified(t *testing.T) {
	repo := newMockRepo()
	menu := seedMenu(t, repo)
	router := newMenuRouter(repo, &countingConflicts{})

	req := httptest.NewRequest(http.MethodGet, "/tenants/12/menus/kitchen/2026/35", nil)
	req.Header.Set("If-None-Match", menu.Tag().String())
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusNotModified, res.Code)
	assert.Equal(t, menu.Tag().String(), res.Header().Get("ETag"))
	assert.Zero(t, res.Body.Len())
}

func TestGetMenuStaleCacheGetsFullBody(t *testing.T) {
	repo := newMockRepo()
	seedMenu(t, repo)
	router := newMenuRouter(repo, &countingConflicts{})

	req := httptest.NewRequest(http.MethodGet, "/tenants/12/menus/kitchen/2026/35", nil)
	req.Header.Set("If-None-Match", `W/"menu:12:kitchen:2026:35.v0"`)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
}

func TestGetMenuNotFound(t *testing.T) {
	router := newMenuRouter(newMockRepo(), &countingConflicts{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/tenants/12/menus/kitchen/2026/35", nil))

	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestCreateMenu(t *testing.T) {
	repo := newMockRepo()
	router := newMenuRouter(repo, &countingConflicts{})

	payload := map[string]any{
		"department": "kitchen",
		"year":       2026,
		"week":       35,
		"days":       []map[string]string{{"day": "monday", "lunch": "fish soup"}},
	}
	body, _ := json.Marshal(payload)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/tenants/12/menus/", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, `W/"menu:12:kitchen:2026:35.v1"`, res.Header().Get("ETag"))
}

func TestCreateMenuRejectsBadDay(t *testing.T) {
	router := newMenuRouter(newMockRepo(), &countingConflicts{})

	payload := map[string]any{
		"department": "kitchen",
		"year":       2026,
		"week":       35,
		"days":       []map[string]string{{"day": "caturday"}},
	}
	body, _ := json.Marshal(payload)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/tenants/12/menus/", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
}

func replaceBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"days": []map[string]string{{"day": "monday", "lunch": "meatballs"}},
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestReplaceMenuAdvancesVersion(t *testing.T) {
	repo := newMockRepo()
	menu := seedMenu(t, repo)
	router := newMenuRouter(repo, &countingConflicts{})

	req := httptest.NewRequest(http.MethodPut, "/tenants/12/menus/kitchen/2026/35", replaceBody(t))
	req.Header.Set("If-Match", menu.Tag().String())
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, `W/"menu:12:kitchen:2026:35.v2"`, res.Header().Get("ETag"))

	var updated menus.WeekMenu
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &updated))
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "meatballs", updated.Days[0].Lunch)
}

func TestReplaceMenuMissingIfMatch(t *testing.T) {
	repo := newMockRepo()
	seedMenu(t, repo)
	router := newMenuRouter(repo, &countingConflicts{})

	req := httptest.NewRequest(http.MethodPut, "/tenants/12/menus/kitchen/2026/35", replaceBody(t))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
	var pd struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &pd))
	assert.Equal(t, "missing_if_match", pd.Detail)
}

func TestReplaceMenuStaleToken(t *testing.T) {
	repo := newMockRepo()
	menu := seedMenu(t, repo)
	conflicts := &countingConflicts{}
	router := newMenuRouter(repo, conflicts)

	// Another writer advances the version first.
	_, err := repo.UpdateDays(context.Background(), 12, "kitchen", 2026, 35,
		[]menus.DayMenu{{Day: "tuesday"}}, 1)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/tenants/12/menus/kitchen/2026/35", replaceBody(t))
	req.Header.Set("If-Match", menu.Tag().String())
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusPreconditionFailed, res.Code)
	assert.Equal(t, 1, conflicts.count())
}

func TestReplaceMenuWrongResourceToken(t *testing.T) {
	repo := newMockRepo()
	seedMenu(t, repo)
	router := newMenuRouter(repo, &countingConflicts{})

	req := httptest.NewRequest(http.MethodPut, "/tenants/12/menus/kitchen/2026/35", replaceBody(t))
	req.Header.Set("If-Match", `W/"menu:12:bakery:2026:35.v1"`)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestReplaceMenuWildcard(t *testing.T) {
	repo := newMockRepo()
	seedMenu(t, repo)
	router := newMenuRouter(repo, &countingConflicts{})

	req := httptest.NewRequest(http.MethodPut, "/tenants/12/menus/kitchen/2026/35", replaceBody(t))
	req.Header.Set("If-Match", "*")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, `W/"menu:12:kitchen:2026:35.v2"`, res.Header().Get("ETag"))
}

func TestConcurrentReplaceExactlyOneWinner(t *testing.T) {
	repo := newMockRepo()
	menu := seedMenu(t, repo)
	conflicts := &countingConflicts{}
	router := newMenuRouter(repo, conflicts)

	const writers = 8
	codes := make([]int, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPut, "/tenants/12/menus/kitchen/2026/35", replaceBody(t))
			req.Header.Set("If-Match", menu.Tag().String())
			res := httptest.NewRecorder()
			router.ServeHTTP(res, req)
			codes[i] = res.Code
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			wins++
		case http.StatusPreconditionFailed:
			losses++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, wins, "exactly one writer may win the race")
	assert.Equal(t, writers-1, losses)

	final, err := repo.Get(context.Background(), 12, "kitchen", 2026, 35)
	require.NoError(t, err)
	assert.Equal(t, int64(2), final.Version, "the version advances exactly once")
}

func TestListWeek(t *testing.T) {
	repo := newMockRepo()
	seedMenu(t, repo)
	router := newMenuRouter(repo, &countingConflicts{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/tenants/12/menus/?year=2026&week=35", nil))

	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Menus []menus.WeekMenu `json:"menus"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Len(t, body.Menus, 1)
}
