// Package impersonate manages the time-boxed tenant overlay a superuser
// must hold before mutating tenant-owned state.
package impersonate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/shared"
)

var (
	// ErrAlreadyActive means the superuser already holds an active session.
	ErrAlreadyActive = errors.New("impersonate: session already active")
	// ErrNotActive means no session exists to stop.
	ErrNotActive = errors.New("impersonate: no active session")
	// ErrReasonRequired means the start request carried no reason.
	ErrReasonRequired = errors.New("impersonate: reason required")
)

// Session records who is acting within which tenant, why, and until when.
type Session struct {
	ID        string    `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	StartedBy int64     `json:"started_by_user_id"`
	Reason    string    `json:"reason"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps at most one session per superuser. Put must be atomic per
// key: two concurrent starts for the same user yield exactly one session.
type Store interface {
	Put(ctx context.Context, userID int64, s Session, ttl time.Duration) error
	Get(ctx context.Context, userID int64) (Session, bool, error)
	Delete(ctx context.Context, userID int64) error
}

// Manager enforces the one-active invariant and lazy expiry.
type Manager struct {
	store  Store
	ttl    time.Duration
	clock  shared.Clock
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewManager constructs a Manager. audit may be nil in tests.
func NewManager(store Store, ttl time.Duration, clock shared.Clock, logger *slog.Logger, audit *shared.AuditLogger) *Manager {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Manager{store: store, ttl: ttl, clock: clock, logger: logger, audit: audit}
}

// Start opens an impersonation session for the superuser scoped to the
// tenant. A live existing session fails with ErrAlreadyActive; an expired
// one is replaced.
func (m *Manager) Start(ctx context.Context, userID, tenantID int64, reason string) (Session, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Session{}, ErrReasonRequired
	}
	if existing, ok, err := m.active(ctx, userID); err != nil {
		return Session{}, err
	} else if ok {
		return existing, ErrAlreadyActive
	}

	now := m.clock.Now()
	sess := Session{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		StartedBy: userID,
		Reason:    reason,
		StartedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, userID, sess, m.ttl); err != nil {
		return Session{}, fmt.Errorf("impersonate: start: %w", err)
	}
	m.record(ctx, sess, "impersonation.start")
	return sess, nil
}

// Stop ends the superuser's session explicitly.
func (m *Manager) Stop(ctx context.Context, userID int64) error {
	sess, ok, err := m.active(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotActive
	}
	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("impersonate: stop: %w", err)
	}
	m.record(ctx, sess, "impersonation.stop")
	return nil
}

// Status returns the superuser's current session. Expiry is detected here
// lazily; an expired record is dropped and reported as absent.
func (m *Manager) Status(ctx context.Context, userID int64) (Session, bool, error) {
	return m.active(ctx, userID)
}

// ActiveFor reports whether the superuser holds a live session scoped to
// the given tenant. This is the contract the RBAC guard consumes.
func (m *Manager) ActiveFor(ctx context.Context, userID, tenantID int64) (bool, error) {
	sess, ok, err := m.active(ctx, userID)
	if err != nil {
		return false, err
	}
	return ok && sess.TenantID == tenantID, nil
}

func (m *Manager) active(ctx context.Context, userID int64) (Session, bool, error) {
	sess, ok, err := m.store.Get(ctx, userID)
	if err != nil {
		return Session{}, false, fmt.Errorf("impersonate: get: %w", err)
	}
	if !ok {
		return Session{}, false, nil
	}
	if !m.clock.Now().Before(sess.ExpiresAt) {
		if err := m.store.Delete(ctx, userID); err != nil && m.logger != nil {
			m.logger.Warn("drop expired impersonation", slog.Any("error", err))
		}
		return Session{}, false, nil
	}
	return sess, true, nil
}

func (m *Manager) record(ctx context.Context, sess Session, action string) {
	if m.audit == nil {
		return
	}
	err := m.audit.Record(ctx, shared.AuditLog{
		TenantID: sess.TenantID,
		ActorID:  sess.StartedBy,
		Action:   action,
		Entity:   "impersonation_session",
		EntityID: sess.ID,
		Meta: map[string]any{
			"reason":     sess.Reason,
			"expires_at": sess.ExpiresAt,
			"tenant_id":  strconv.FormatInt(sess.TenantID, 10),
		},
		At: m.clock.Now(),
	})
	if err != nil && m.logger != nil {
		m.logger.Warn("audit impersonation", slog.Any("error", err))
	}
}
