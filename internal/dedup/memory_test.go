package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStore_RecordIfNew(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	fresh, err := s.RecordIfNew(ctx, "wamid.m1", time.Hour)
	if err != nil || !fresh {
		t.Fatalf("first claim: fresh=%v err=%v", fresh, err)
	}
	fresh, err = s.RecordIfNew(ctx, "wamid.m1", time.Hour)
	if err != nil || fresh {
		t.Fatalf("duplicate claim: fresh=%v err=%v", fresh, err)
	}
}

func TestMemoryStore_ExpiryReopensID(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now()
	s.nowFunc = func() time.Time { return base }
	ctx := context.Background()

	if fresh, _ := s.RecordIfNew(ctx, "wamid.m2", time.Minute); !fresh {
		t.Fatal("first claim should be fresh")
	}

	s.nowFunc = func() time.Time { return base.Add(59 * time.Second) }
	if fresh, _ := s.RecordIfNew(ctx, "wamid.m2", time.Minute); fresh {
		t.Fatal("claim inside window should be a duplicate")
	}

	s.nowFunc = func() time.Time { return base.Add(61 * time.Second) }
	if fresh, _ := s.RecordIfNew(ctx, "wamid.m2", time.Minute); !fresh {
		t.Fatal("claim after expiry should be fresh again")
	}
}

func TestMemoryStore_SweepsExpiredEntries(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now()
	s.nowFunc = func() time.Time { return base }
	ctx := context.Background()

	for i := 0; i < sweepAbove+10; i++ {
		if _, err := s.RecordIfNew(ctx, fmt.Sprintf("wamid.bulk-%d", i), time.Minute); err != nil {
			t.Fatalf("claim %d error: %v", i, err)
		}
	}

	// Everything above has expired; the next write should prune the map
	// instead of letting it grow without bound.
	s.nowFunc = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := s.RecordIfNew(ctx, "wamid.after-sweep", time.Minute); err != nil {
		t.Fatalf("post-sweep claim error: %v", err)
	}

	s.mu.Lock()
	size := len(s.seen)
	s.mu.Unlock()
	if size > 2 {
		t.Fatalf("expected expired entries swept, map still holds %d", size)
	}
}
