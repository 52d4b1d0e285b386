package dedup

import (
	"context"
	"sync"
	"time"
)

// sweepAbove bounds how large the seen map may grow before expired entries
// are pruned inline.
const sweepAbove = 1024

// MemoryStore is the in-process fallback. It only deduplicates deliveries
// hitting this process; retries landing on another instance will be
// processed again there.
type MemoryStore struct {
	mu      sync.Mutex
	seen    map[string]time.Time // message id -> expiry deadline
	nowFunc func() time.Time
}

// NewMemoryStore returns an empty in-memory dedup store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:    map[string]time.Time{},
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) RecordIfNew(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	now := s.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.seen) > sweepAbove {
		for id, deadline := range s.seen {
			if !deadline.After(now) {
				delete(s.seen, id)
			}
		}
	}

	if deadline, ok := s.seen[messageID]; ok && deadline.After(now) {
		return false, nil
	}
	s.seen[messageID] = now.Add(ttl)
	return true, nil
}
