package shared

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// FlagSource reports runtime feature flags.
type FlagSource interface {
	Enabled(ctx context.Context, name string) bool
}

// StaticFlags is a fixed FlagSource for tests and single-tenant deploys.
type StaticFlags map[string]bool

// Enabled returns the configured value, false for unknown flags.
func (f StaticFlags) Enabled(_ context.Context, name string) bool { return f[name] }

// FlagStore reads feature flags from the feature_flags table with a
// short-lived cache. Reload is deduplicated across callers.
type FlagStore struct {
	pool     *pgxpool.Pool
	ttl      time.Duration
	defaults map[string]bool
	group    singleflight.Group

	mu     sync.RWMutex
	cached map[string]bool
	loaded time.Time
}

// NewFlagStore constructs a FlagStore. defaults answers for flags missing
// from the table and for reads before the first successful load.
func NewFlagStore(pool *pgxpool.Pool, ttl time.Duration, defaults map[string]bool) *FlagStore {
	if defaults == nil {
		defaults = map[string]bool{}
	}
	return &FlagStore{pool: pool, ttl: ttl, defaults: defaults}
}

// Enabled reports whether the named flag is on. Lookup failures fall back
// to the last known value, then to the default.
func (s *FlagStore) Enabled(ctx context.Context, name string) bool {
	s.mu.RLock()
	fresh := s.cached != nil && time.Since(s.loaded) < s.ttl
	value, known := s.cached[name]
	s.mu.RUnlock()
	if fresh {
		if known {
			return value
		}
		return s.defaults[name]
	}

	_, _, _ = s.group.Do("reload", func() (any, error) {
		return nil, s.reload(ctx)
	})

	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.cached[name]; ok {
		return v
	}
	return s.defaults[name]
}

func (s *FlagStore) reload(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT name, enabled FROM feature_flags`)
	if err != nil {
		return err
	}
	defer rows.Close()
	next := make(map[string]bool)
	for rows.Next() {
		var name string
		var enabled bool
		if err := rows.Scan(&name, &enabled); err != nil {
			return err
		}
		next[name] = enabled
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = next
	s.loaded = time.Now()
	s.mu.Unlock()
	return nil
}
