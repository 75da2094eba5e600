package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
	_ "github.com/Henkemannn/YuplanUnified-sub003/testing"
)

// identityMiddleware injects a fixed identity ahead of the guard.
func identityMiddleware(ac *rbac.AuthContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ac != nil {
				r = r.WithContext(rbac.ContextWithAuth(r.Context(), ac))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newGatedRouter(ac *rbac.AuthContext, handlerHit *bool) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := shared.NewCSRFGuard(shared.StaticFlags{shared.FlagCSRFStrict: true}, "csrfsecret", false)
	rbacMW := rbac.Middleware{Guard: rbac.NewGuard(nil), Logger: logger}

	r := chi.NewRouter()
	r.Use(identityMiddleware(ac))
	r.Route("/tenants/{tenantID}/menus", func(r chi.Router) {
		r.Use(rbacMW.RequireMutation(rbac.RoleEditor))
		r.Use(CSRFVerify(guard, logger, nil))
		r.Post("/", func(w http.ResponseWriter, _ *http.Request) {
			*handlerHit = true
			w.WriteHeader(http.StatusCreated)
		})
	})
	return r
}

func problemOf(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

func TestRoleDenialAnsweredBeforeTokenCheck(t *testing.T) {
	var hit bool
	router := newGatedRouter(&rbac.AuthContext{Role: rbac.RoleViewer, TenantID: 1}, &hit)

	// No CSRF material at all. A viewer must still see the role denial,
	// not a token complaint.
	req := httptest.NewRequest(http.MethodPost, "/tenants/1/menus/", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
	body := problemOf(t, res)
	assert.Equal(t, "editor", body["required_role"])
	assert.NotContains(t, body, "detail")
	assert.False(t, hit)
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	var hit bool
	router := newGatedRouter(nil, &hit)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/tenants/1/menus/", nil))

	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.False(t, hit)
}

func TestAuthorizedWithoutTokenIsCSRFDenied(t *testing.T) {
	var hit bool
	router := newGatedRouter(&rbac.AuthContext{Role: rbac.RoleEditor, TenantID: 1}, &hit)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/tenants/1/menus/", nil))

	require.Equal(t, http.StatusForbidden, res.Code)
	body := problemOf(t, res)
	assert.Equal(t, "csrf_missing", body["detail"])
	assert.False(t, hit)
}

func TestAuthorizedWithTokenPasses(t *testing.T) {
	var hit bool
	router := newGatedRouter(&rbac.AuthContext{Role: rbac.RoleEditor, TenantID: 1}, &hit)

	req := httptest.NewRequest(http.MethodPost, "/tenants/1/menus/", nil)
	req.AddCookie(&http.Cookie{Name: shared.CSRFCookieName, Value: "tok"})
	req.Header.Set(shared.CSRFHeaderName, "tok")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusCreated, res.Code)
	assert.True(t, hit)
}

func TestCrossTenantMutationForbidden(t *testing.T) {
	var hit bool
	router := newGatedRouter(&rbac.AuthContext{Role: rbac.RoleEditor, TenantID: 2}, &hit)

	req := httptest.NewRequest(http.MethodPost, "/tenants/1/menus/", nil)
	req.AddCookie(&http.Cookie{Name: shared.CSRFCookieName, Value: "tok"})
	req.Header.Set(shared.CSRFHeaderName, "tok")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.False(t, hit)
}
