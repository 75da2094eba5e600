// Package ratelimit implements the sliding-window failure counter with
// lockout that fronts auth-sensitive routes.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Store holds per-key counter and lock state. Implementations must make
// each operation atomic per key; unrelated keys never serialize on a
// shared lock.
type Store interface {
	// Fail records one failure within the current window and returns the
	// updated count. The window starts at the first failure.
	Fail(ctx context.Context, key string, window time.Duration) (int64, error)
	// Lock engages the lockout for the given duration.
	Lock(ctx context.Context, key string, d time.Duration) error
	// Locked returns the remaining lock duration, zero when unlocked.
	Locked(ctx context.Context, key string) (time.Duration, error)
	// Reset clears the failure window for the key.
	Reset(ctx context.Context, key string) error
}

// Config sets the window, threshold and lockout length.
type Config struct {
	Window      time.Duration
	MaxFailures int
	Lock        time.Duration
}

// LockoutRecorder counts engaged lockouts for observability.
type LockoutRecorder interface {
	RateLimitLockout()
}

// Limiter evaluates attempts keyed by (route class, identity key).
type Limiter struct {
	store    Store
	cfg      Config
	lockouts LockoutRecorder
}

// New constructs a Limiter.
func New(store Store, cfg Config) *Limiter {
	return &Limiter{store: store, cfg: cfg}
}

// WithLockoutRecorder attaches an observability hook.
func (l *Limiter) WithLockoutRecorder(rec LockoutRecorder) *Limiter {
	l.lockouts = rec
	return l
}

// Allow reports whether the key may attempt. When denied, retryAfter is
// the whole number of seconds the caller must wait, always at least 1.
func (l *Limiter) Allow(ctx context.Context, class, key string) (ok bool, retryAfter int, err error) {
	remaining, err := l.store.Locked(ctx, l.storeKey(class, key))
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: locked: %w", err)
	}
	if remaining > 0 {
		secs := int(math.Ceil(remaining.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return false, secs, nil
	}
	return true, 0, nil
}

// Failure records a failed attempt. When the failure count reaches the
// threshold the key is locked for the configured duration; the lock then
// blocks every attempt, successes included, until it elapses.
func (l *Limiter) Failure(ctx context.Context, class, key string) error {
	sk := l.storeKey(class, key)
	count, err := l.store.Fail(ctx, sk, l.cfg.Window)
	if err != nil {
		return fmt.Errorf("ratelimit: fail: %w", err)
	}
	if count >= int64(l.cfg.MaxFailures) {
		if err := l.store.Lock(ctx, sk, l.cfg.Lock); err != nil {
			return fmt.Errorf("ratelimit: lock: %w", err)
		}
		if l.lockouts != nil {
			l.lockouts.RateLimitLockout()
		}
	}
	return nil
}

// Success records a successful attempt. It neither increments the counter
// nor clears an existing lock early.
func (l *Limiter) Success(ctx context.Context, class, key string) error {
	return nil
}

func (l *Limiter) storeKey(class, key string) string {
	return class + ":" + key
}
