package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback when no shared table is configured
// or reachable. Sessions are lost on restart and invisible to other
// processes.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]Session
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemoryStore returns an in-memory session store with the given idle TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items:   map[string]Session{},
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, subscriberID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.items[subscriberID]
	if !ok {
		return New(subscriberID), nil
	}
	if sess.ExpiresAt <= s.nowFunc().Unix() {
		delete(s.items, subscriberID)
		return New(subscriberID), nil
	}
	return sess, nil
}

func (s *MemoryStore) Put(ctx context.Context, sess Session) error {
	now := s.nowFunc()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.LastActivityAt = now
	sess.ExpiresAt = now.Add(s.ttl).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sess.SubscriberID] = sess
	return nil
}
