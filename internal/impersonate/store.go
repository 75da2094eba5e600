package impersonate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions in Redis. SET NX on the per-user key makes
// concurrent starts race-safe; the key TTL backs the lazy expiry check as
// a server-side sweep.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(userID int64) string {
	return "impersonate:" + strconv.FormatInt(userID, 10)
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, userID int64, sess Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("impersonate: marshal: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(userID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyActive
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, userID int64) (Session, bool, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, false, fmt.Errorf("impersonate: unmarshal: %w", err)
	}
	return sess, true, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

var _ Store = (*RedisStore)(nil)

// MemoryStore keeps sessions in process memory for tests and single-node
// deploys. TTL expiry is left to the manager's lazy check.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, userID int64, sess Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; ok {
		return ErrAlreadyActive
	}
	s.sessions[userID] = sess
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID int64) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// SweepExpired removes sessions past their expiry. Used by the cron job;
// correctness never depends on it, lazy checks already hide expired
// sessions.
func (s *MemoryStore) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for userID, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

var _ Store = (*MemoryStore)(nil)
