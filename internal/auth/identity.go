package auth

import (
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/rbac"
	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

// Identity headers for the service-to-service path. The session, when it
// carries a role, always wins over headers.
const (
	HeaderRole   = "X-Yuplan-Role"
	HeaderTenant = "X-Yuplan-Tenant"
	HeaderUser   = "X-Yuplan-User"
	HeaderSite   = "X-Yuplan-Site"
)

// Resolver builds the per-request AuthContext from session or header
// identity material. It never rejects: absence is reported by attaching
// nothing, and the RBAC guard translates that into 401.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Middleware resolves the identity once and attaches it to the request
// context for downstream reuse.
func (re *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ac, ok := re.Resolve(r); ok {
			r = r.WithContext(rbac.ContextWithAuth(r.Context(), ac))
		}
		next.ServeHTTP(w, r)
	})
}

// Resolve extracts identity material from the request. The second return
// is false when no identity is present.
func (re *Resolver) Resolve(r *http.Request) (*rbac.AuthContext, bool) {
	if ac, ok := re.fromSession(r); ok {
		return ac, true
	}
	return re.fromHeaders(r)
}

func (re *Resolver) fromSession(r *http.Request) (*rbac.AuthContext, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil, false
	}
	role := rbac.Canonicalize(sess.Get(shared.SessionKeyRole))
	if !role.Valid() {
		return nil, false
	}
	ac := &rbac.AuthContext{
		Role:   role,
		SiteID: sess.Get(shared.SessionKeySite),
	}
	if raw := sess.Get(shared.SessionKeyTenant); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			if re.logger != nil {
				re.logger.Error("parse session tenant id", slog.String("value", raw))
			}
			return nil, false
		}
		ac.TenantID = id
	}
	if raw := strings.TrimSpace(sess.User()); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			if re.logger != nil {
				re.logger.Error("parse session user id", slog.String("value", raw))
			}
			return nil, false
		}
		ac.UserID = id
	}
	return ac, true
}

func (re *Resolver) fromHeaders(r *http.Request) (*rbac.AuthContext, bool) {
	role := rbac.Canonicalize(r.Header.Get(HeaderRole))
	if !role.Valid() {
		return nil, false
	}
	ac := &rbac.AuthContext{Role: role, SiteID: r.Header.Get(HeaderSite)}
	if raw := r.Header.Get(HeaderTenant); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		ac.TenantID = id
	}
	if raw := r.Header.Get(HeaderUser); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		ac.UserID = id
	}
	return ac, true
}
