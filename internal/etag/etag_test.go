package etag

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagString(t *testing.T) {
	tag := NewTag("menu", 7, "12", "kitchen", "2026", "35")
	assert.Equal(t, `W/"menu:12:kitchen:2026:35.v7"`, tag.String())

	tag = NewTag("user", 1, "3", "42")
	assert.Equal(t, `W/"user:3:42.v1"`, tag.String())
}

func TestParseRoundTrip(t *testing.T) {
	orig := NewTag("schedule", 19, "4", "north", "2026", "09")
	parsed, err := Parse(orig.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(orig))
}

func TestParseTolerantForms(t *testing.T) {
	for _, raw := range []string{
		`W/"menu:12:kitchen:2026:35.v7"`,
		`"menu:12:kitchen:2026:35.v7"`,
		`menu:12:kitchen:2026:35.v7`,
		`  W/"menu:12:kitchen:2026:35.v7"  `,
	} {
		tag, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "menu", tag.Kind)
		assert.Equal(t, []string{"12", "kitchen", "2026", "35"}, tag.Scope)
		assert.Equal(t, int64(7), tag.Version)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"", "menu:12", `W/"menu:12.vx"`, `W/".v3"`, `W/"menu:12.v-1"`} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestMatchesIfNoneMatch(t *testing.T) {
	current := NewTag("menu", 7, "12", "kitchen", "2026", "35")

	assert.False(t, MatchesIfNoneMatch("", current))
	assert.True(t, MatchesIfNoneMatch("*", current))
	assert.True(t, MatchesIfNoneMatch(current.String(), current))
	assert.False(t, MatchesIfNoneMatch(NewTag("menu", 6, "12", "kitchen", "2026", "35").String(), current))

	// List form with one fresh candidate.
	header := NewTag("menu", 3, "12", "kitchen", "2026", "35").String() + ", " + current.String()
	assert.True(t, MatchesIfNoneMatch(header, current))

	// Garbage candidates are skipped, not fatal.
	assert.True(t, MatchesIfNoneMatch("not-a-tag, "+current.String(), current))
}

func TestCheckIfMatch(t *testing.T) {
	current := NewTag("menu", 7, "12", "kitchen", "2026", "35")

	t.Run("missing header", func(t *testing.T) {
		_, err := CheckIfMatch("", current)
		assert.ErrorIs(t, err, ErrIfMatchRequired)
	})

	t.Run("wildcard passes with current version", func(t *testing.T) {
		v, err := CheckIfMatch("*", current)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
	})

	t.Run("exact match", func(t *testing.T) {
		v, err := CheckIfMatch(current.String(), current)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := CheckIfMatch(`W/"menu"`, current)
		assert.ErrorIs(t, err, ErrMalformed)
		// The parse error surfaces as-is, not wrapped a second time.
		assert.Equal(t, strings.Count(err.Error(), ErrMalformed.Error()), 1)
	})

	t.Run("different resource", func(t *testing.T) {
		other := NewTag("menu", 7, "13", "kitchen", "2026", "35")
		_, err := CheckIfMatch(other.String(), current)
		assert.ErrorIs(t, err, ErrIdentityMismatch)
	})

	t.Run("stale version", func(t *testing.T) {
		stale := NewTag("menu", 6, "12", "kitchen", "2026", "35")
		_, err := CheckIfMatch(stale.String(), current)
		assert.ErrorIs(t, err, ErrStale)
		assert.False(t, errors.Is(err, ErrIdentityMismatch))
	})
}

func TestSameResourceIgnoresVersion(t *testing.T) {
	a := NewTag("menu", 1, "12", "kitchen", "2026", "35")
	b := NewTag("menu", 9, "12", "kitchen", "2026", "35")
	assert.True(t, a.SameResource(b))
	assert.False(t, a.Equal(b))

	c := NewTag("schedule", 1, "12", "kitchen", "2026", "35")
	assert.False(t, a.SameResource(c))
}
