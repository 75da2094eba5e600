package shared

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"
)

const (
	// CSRFCookieName carries the double-submit token set on safe requests.
	CSRFCookieName = "yp_csrf"
	// CSRFHeaderName is the request header that must echo the cookie token.
	CSRFHeaderName = "X-CSRF-Token"
	// FlagCSRFStrict gates enforcement during staged rollout.
	FlagCSRFStrict = "csrf_strict"
)

// CSRFGuard verifies the double-submit cookie/header pair and the Origin
// header on state-changing requests.
type CSRFGuard struct {
	flags  FlagSource
	secret []byte
	secure bool
	exempt map[string]struct{}
}

// NewCSRFGuard constructs a CSRFGuard. Paths in exempt skip the
// double-submit check (the login endpoint has no prior token) but are
// still subject to the Origin check.
func NewCSRFGuard(flags FlagSource, secret string, secure bool, exempt ...string) *CSRFGuard {
	set := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		set[p] = struct{}{}
	}
	return &CSRFGuard{flags: flags, secret: []byte(secret), secure: secure, exempt: set}
}

// SafeMethod reports whether the method never mutates state.
func SafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Verify checks the request. Safe methods always pass; with the strict
// flag off the guard is a pass-through. Returns ErrOriginMismatch,
// ErrCSRFTokenMissing or ErrCSRFTokenMismatch on denial.
func (g *CSRFGuard) Verify(r *http.Request) error {
	if SafeMethod(r.Method) {
		return nil
	}
	if g.flags == nil || !g.flags.Enabled(r.Context(), FlagCSRFStrict) {
		return nil
	}

	// Origin is checked independently of token state, exempt paths
	// included. An opaque "null" origin (sandboxed iframe, data: or
	// file: context) can never match the host and is denied like any
	// other mismatch.
	if origin := r.Header.Get("Origin"); origin != "" {
		parsed, err := url.Parse(origin)
		if err != nil || parsed.Host == "" || parsed.Host != r.Host {
			return ErrOriginMismatch
		}
	}

	if _, ok := g.exempt[r.URL.Path]; ok {
		return nil
	}

	cookie, err := r.Cookie(CSRFCookieName)
	header := r.Header.Get(CSRFHeaderName)
	if err != nil || cookie.Value == "" || header == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(cookie.Value), []byte(header)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

// EnsureCookie sets the double-submit cookie when absent and returns the
// current token. The cookie is deliberately readable by same-origin
// script so it can be echoed back in the header.
func (g *CSRFGuard) EnsureCookie(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	token := g.mintToken()
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func (g *CSRFGuard) mintToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		mac := hmac.New(sha256.New, g.secret)
		_, _ = mac.Write([]byte(time.Now().Format(time.RFC3339Nano)))
		return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
