package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

type memoryEntry struct {
	mu          sync.Mutex
	windowStart time.Time
	failures    int64
	lockedUntil time.Time
}

// MemoryStore keeps counters in process memory. State is atomic per key;
// the outer map lock is held only for entry lookup.
type MemoryStore struct {
	clock   shared.Clock
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryStore constructs a MemoryStore using the given clock.
func NewMemoryStore(clock shared.Clock) *MemoryStore {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &MemoryStore{clock: clock, entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) entry(key string) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &memoryEntry{}
		s.entries[key] = e
	}
	return e
}

// Fail implements Store.
func (s *MemoryStore) Fail(_ context.Context, key string, window time.Duration) (int64, error) {
	now := s.clock.Now()
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.windowStart.IsZero() || now.Sub(e.windowStart) >= window {
		e.windowStart = now
		e.failures = 0
	}
	e.failures++
	return e.failures, nil
}

// Lock implements Store. The failure window is cleared here so the first
// attempt after the lock expires is evaluated fresh, not auto-locked.
func (s *MemoryStore) Lock(_ context.Context, key string, d time.Duration) error {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lockedUntil = s.clock.Now().Add(d)
	e.windowStart = time.Time{}
	e.failures = 0
	return nil
}

// Locked implements Store. An elapsed lock resets the key so the next
// attempt is evaluated fresh.
func (s *MemoryStore) Locked(_ context.Context, key string) (time.Duration, error) {
	now := s.clock.Now()
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lockedUntil.IsZero() {
		return 0, nil
	}
	if remaining := e.lockedUntil.Sub(now); remaining > 0 {
		return remaining, nil
	}
	e.lockedUntil = time.Time{}
	e.windowStart = time.Time{}
	e.failures = 0
	return 0, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.windowStart = time.Time{}
	e.failures = 0
	return nil
}

// Sweep drops entries whose lock has elapsed and whose window started
// longer than olderThan ago. Intended for the background GC job.
func (s *MemoryStore) Sweep(olderThan time.Duration) int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		e.mu.Lock()
		unlocked := e.lockedUntil.IsZero() || now.After(e.lockedUntil)
		aged := e.windowStart.IsZero() || now.Sub(e.windowStart) >= olderThan
		e.mu.Unlock()
		if unlocked && aged {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

var _ Store = (*MemoryStore)(nil)
