package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeProblem(t *testing.T, res *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	if ct := res.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var pd ProblemDetail
	if err := json.Unmarshal(res.Body.Bytes(), &pd); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return pd
}

func TestUnauthorized(t *testing.T) {
	res := httptest.NewRecorder()
	Unauthorized(res)

	pd := decodeProblem(t, res)
	if res.Code != http.StatusUnauthorized || pd.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d/%d", res.Code, pd.Status)
	}
	if pd.Type != "/problems/unauthorized" {
		t.Fatalf("unexpected type %q", pd.Type)
	}
}

func TestForbiddenCarriesRequiredRole(t *testing.T) {
	res := httptest.NewRecorder()
	Forbidden(res, "editor")

	pd := decodeProblem(t, res)
	if pd.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", pd.Status)
	}
	if pd.RequiredRole != "editor" {
		t.Fatalf("expected required_role editor, got %q", pd.RequiredRole)
	}
}

func TestImpersonationRequiredIsDistinct(t *testing.T) {
	res := httptest.NewRecorder()
	ImpersonationRequired(res)

	pd := decodeProblem(t, res)
	if pd.Status != http.StatusForbidden || pd.Detail != "impersonation_required" {
		t.Fatalf("unexpected problem %+v", pd)
	}
}

func TestCSRFDenied(t *testing.T) {
	for _, reason := range []string{"csrf_missing", "csrf_invalid", "origin_mismatch"} {
		res := httptest.NewRecorder()
		CSRFDenied(res, reason)
		pd := decodeProblem(t, res)
		if pd.Status != http.StatusForbidden || pd.Detail != reason {
			t.Fatalf("unexpected problem for %s: %+v", reason, pd)
		}
		if pd.Type != "/problems/"+reason {
			t.Fatalf("unexpected type %q", pd.Type)
		}
	}
}

func TestPreconditionProblems(t *testing.T) {
	res := httptest.NewRecorder()
	MissingIfMatch(res)
	if pd := decodeProblem(t, res); pd.Status != http.StatusBadRequest || pd.Detail != "missing_if_match" {
		t.Fatalf("unexpected problem %+v", pd)
	}

	res = httptest.NewRecorder()
	ETagMismatch(res)
	if pd := decodeProblem(t, res); pd.Status != http.StatusPreconditionFailed || pd.Detail != "etag_mismatch" {
		t.Fatalf("unexpected problem %+v", pd)
	}
}

func TestRateLimited(t *testing.T) {
	res := httptest.NewRecorder()
	RateLimited(res, 37)

	pd := decodeProblem(t, res)
	if pd.Status != http.StatusTooManyRequests || pd.RetryAfter != 37 {
		t.Fatalf("unexpected problem %+v", pd)
	}
	if got := res.Header().Get("Retry-After"); got != "37" {
		t.Fatalf("unexpected Retry-After %q", got)
	}

	// Never less than one second.
	res = httptest.NewRecorder()
	RateLimited(res, 0)
	if got := res.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("unexpected Retry-After %q", got)
	}
}

func TestValidationFailed(t *testing.T) {
	res := httptest.NewRecorder()
	ValidationFailed(res, []InvalidParam{{Name: "role", Reason: "unknown role"}})

	pd := decodeProblem(t, res)
	if pd.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", pd.Status)
	}
	if len(pd.InvalidParams) != 1 || pd.InvalidParams[0].Name != "role" {
		t.Fatalf("unexpected invalid params %+v", pd.InvalidParams)
	}
}

func TestNotModifiedEchoesTag(t *testing.T) {
	res := httptest.NewRecorder()
	NotModified(res, `W/"menu:12:kitchen:2026:35.v7"`)

	if res.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", res.Code)
	}
	if got := res.Header().Get("ETag"); got != `W/"menu:12:kitchen:2026:35.v7"` {
		t.Fatalf("unexpected ETag %q", got)
	}
	if res.Body.Len() != 0 {
		t.Fatalf("304 must carry no body, got %q", res.Body.String())
	}
}

func TestLegacyError(t *testing.T) {
	res := httptest.NewRecorder()
	LegacyError(res, http.StatusForbidden, "forbidden", "insufficient role")

	if ct := res.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("legacy envelope must be plain json, got %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "forbidden" || body["message"] != "insufficient role" || body["status"] != float64(403) {
		t.Fatalf("unexpected envelope %+v", body)
	}
}
