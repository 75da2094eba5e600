// Package etag encodes, decodes and adjudicates weak entity tags used as
// optimistic-lock tokens for concurrently edited resources.
package etag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformed indicates an unparseable tag.
	ErrMalformed = errors.New("etag: malformed tag")
	// ErrIfMatchRequired indicates a mutation arrived without If-Match.
	ErrIfMatchRequired = errors.New("etag: if-match required")
	// ErrIdentityMismatch indicates the tag names a different resource
	// than the request targets. This is a caller error, not a race.
	ErrIdentityMismatch = errors.New("etag: resource identity mismatch")
	// ErrStale indicates another writer advanced the version since the
	// caller read the resource. The expected outcome of benign races.
	ErrStale = errors.New("etag: stale version")
)

// Tag names one version of one scoped resource. Two tags are equal iff
// kind, every scope key and version are equal.
type Tag struct {
	Kind    string
	Scope   []string
	Version int64
}

// NewTag builds a Tag for the resource identified by kind and its ordered
// scope keys.
func NewTag(kind string, version int64, scope ...string) Tag {
	return Tag{Kind: kind, Scope: scope, Version: version}
}

// String renders the weak tag, e.g. W/"menu:12:kitchen:2026:35.v7".
// The format names the kind and all scope keys positionally so two
// resources never collide on a token even at the same version.
func (t Tag) String() string {
	parts := append([]string{t.Kind}, t.Scope...)
	return fmt.Sprintf(`W/"%s.v%d"`, strings.Join(parts, ":"), t.Version)
}

// Equal reports full identity and version equality.
func (t Tag) Equal(other Tag) bool {
	if t.Kind != other.Kind || t.Version != other.Version || len(t.Scope) != len(other.Scope) {
		return false
	}
	for i := range t.Scope {
		if t.Scope[i] != other.Scope[i] {
			return false
		}
	}
	return true
}

// SameResource reports whether both tags name the same resource,
// ignoring version.
func (t Tag) SameResource(other Tag) bool {
	if t.Kind != other.Kind || len(t.Scope) != len(other.Scope) {
		return false
	}
	for i := range t.Scope {
		if t.Scope[i] != other.Scope[i] {
			return false
		}
	}
	return true
}

// Parse decodes a tag string. The weak prefix and surrounding quotes are
// optional so diagnostic tooling can pass bare values.
func Parse(raw string) (Tag, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "W/")
	s = strings.Trim(s, `"`)
	dot := strings.LastIndex(s, ".v")
	if dot < 0 {
		return Tag{}, ErrMalformed
	}
	version, err := strconv.ParseInt(s[dot+2:], 10, 64)
	if err != nil || version < 0 {
		return Tag{}, ErrMalformed
	}
	parts := strings.Split(s[:dot], ":")
	if len(parts) < 1 || parts[0] == "" {
		return Tag{}, ErrMalformed
	}
	return Tag{Kind: parts[0], Scope: parts[1:], Version: version}, nil
}

// MatchesIfNoneMatch reports whether an If-None-Match header value hits
// the current tag, meaning the caller's cached representation is fresh
// and a 304 should be returned. The wildcard always matches.
func MatchesIfNoneMatch(header string, current Tag) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		tag, err := Parse(candidate)
		if err != nil {
			continue
		}
		if tag.Equal(current) {
			return true
		}
	}
	return false
}

// CheckIfMatch adjudicates a conditional write before any domain logic
// runs. An empty header is rejected outright to prevent blind overwrites.
// The wildcard asserts only that the resource exists and passes. The
// returned version is what the storage layer must condition its update on.
func CheckIfMatch(header string, current Tag) (int64, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, ErrIfMatchRequired
	}
	if header == "*" {
		return current.Version, nil
	}
	tag, err := Parse(header)
	if err != nil {
		return 0, err
	}
	if !tag.SameResource(current) {
		return 0, ErrIdentityMismatch
	}
	if tag.Version != current.Version {
		return 0, ErrStale
	}
	return tag.Version, nil
}
