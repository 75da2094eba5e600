// Package httpx renders every client-facing failure in one RFC7807
// problem envelope, regardless of which gate produced it.
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// problemTypeBase prefixes the type URI suffix of each failure reason.
const problemTypeBase = "/problems/"

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type          string         `json:"type,omitempty"`
	Title         string         `json:"title"`
	Status        int            `json:"status"`
	Detail        string         `json:"detail,omitempty"`
	RequiredRole  string         `json:"required_role,omitempty"`
	RetryAfter    int            `json:"retry_after,omitempty"`
	InvalidParams []InvalidParam `json:"invalid_params,omitempty"`
}

// InvalidParam names one rejected request field.
type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	WriteProblem(w, ProblemDetail{Title: title, Status: status, Detail: detail})
}

// WriteProblem sends a fully populated problem envelope.
func WriteProblem(w http.ResponseWriter, pd ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)
	_ = json.NewEncoder(w).Encode(pd)
}

// Unauthorized renders the 401 problem for absent identity.
func Unauthorized(w http.ResponseWriter) {
	WriteProblem(w, ProblemDetail{
		Type:   problemTypeBase + "unauthorized",
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
	})
}

// Forbidden renders the 403 problem carrying the role the route requires.
func Forbidden(w http.ResponseWriter, requiredRole string) {
	WriteProblem(w, ProblemDetail{
		Type:         problemTypeBase + "forbidden",
		Title:        "Forbidden",
		Status:       http.StatusForbidden,
		RequiredRole: requiredRole,
	})
}

// ImpersonationRequired renders the 403 problem distinct from ordinary
// role insufficiency.
func ImpersonationRequired(w http.ResponseWriter) {
	WriteProblem(w, ProblemDetail{
		Type:   problemTypeBase + "forbidden",
		Title:  "Forbidden",
		Status: http.StatusForbidden,
		Detail: "impersonation_required",
	})
}

// CSRFDenied renders a 403 problem for csrf_missing, csrf_invalid or
// origin_mismatch.
func CSRFDenied(w http.ResponseWriter, reason string) {
	WriteProblem(w, ProblemDetail{
		Type:   problemTypeBase + reason,
		Title:  "Forbidden",
		Status: http.StatusForbidden,
		Detail: reason,
	})
}

// MissingIfMatch rejects a mutation that carried no If-Match header.
func MissingIfMatch(w http.ResponseWriter) {
	WriteProblem(w, ProblemDetail{
		Type:   problemTypeBase + "missing_if_match",
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
		Detail: "missing_if_match",
	})
}

// ETagMismatch rejects a mutation whose expected version is stale.
func ETagMismatch(w http.ResponseWriter) {
	WriteProblem(w, ProblemDetail{
		Type:   problemTypeBase + "etag_mismatch",
		Title:  "Precondition Failed",
		Status: http.StatusPreconditionFailed,
		Detail: "etag_mismatch",
	})
}

// RateLimited renders the 429 problem and the Retry-After header.
func RateLimited(w http.ResponseWriter, retryAfter int) {
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteProblem(w, ProblemDetail{
		Type:       problemTypeBase + "rate_limited",
		Title:      "Too Many Requests",
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	})
}

// ValidationFailed renders the 400 problem listing rejected fields.
func ValidationFailed(w http.ResponseWriter, params []InvalidParam) {
	WriteProblem(w, ProblemDetail{
		Type:          problemTypeBase + "validation_error",
		Title:         "Validation Failed",
		Status:        http.StatusBadRequest,
		Detail:        "validation_error",
		InvalidParams: params,
	})
}

// NotFound renders the 404 problem.
func NotFound(w http.ResponseWriter) {
	WriteProblem(w, ProblemDetail{
		Type:   problemTypeBase + "not_found",
		Title:  "Not Found",
		Status: http.StatusNotFound,
	})
}

// NotModified writes the 304 response echoing the current tag.
func NotModified(w http.ResponseWriter, tag string) {
	w.Header().Set("ETag", tag)
	w.WriteHeader(http.StatusNotModified)
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

// legacyEnvelope is the pre-migration error shape still served on the
// export route family.
type legacyEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// LegacyError renders the deprecated {error,message,status} envelope.
func LegacyError(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, legacyEnvelope{Error: code, Message: message, Status: status})
}
