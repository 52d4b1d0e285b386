package dedup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDynamoStore_RecordIfNew(t *testing.T) {
	mock := newSimpleMock()
	s := NewDynamoStore(mock, "dedup-table")

	ctx := context.Background()
	id := "wamid.test-1"

	fresh, err := s.RecordIfNew(ctx, id, 24*time.Hour)
	if err != nil {
		t.Fatalf("RecordIfNew error: %v", err)
	}
	if !fresh {
		t.Fatal("expected fresh=true on first claim")
	}

	// second claim within the window loses
	fresh2, err := s.RecordIfNew(ctx, id, 24*time.Hour)
	if err != nil {
		t.Fatalf("second RecordIfNew error: %v", err)
	}
	if fresh2 {
		t.Fatal("expected fresh=false on duplicate claim")
	}
}

func TestDynamoStore_ExpiredRecordClaimableAgain(t *testing.T) {
	mock := newSimpleMock()
	s := NewDynamoStore(mock, "dedup-table")

	base := time.Now()
	s.nowFunc = func() time.Time { return base }

	ctx := context.Background()
	id := "wamid.test-2"

	if fresh, err := s.RecordIfNew(ctx, id, time.Hour); err != nil || !fresh {
		t.Fatalf("first claim: fresh=%v err=%v", fresh, err)
	}

	// Just inside the window: still a duplicate even though DynamoDB's
	// background TTL sweep has not run.
	s.nowFunc = func() time.Time { return base.Add(59 * time.Minute) }
	if fresh, err := s.RecordIfNew(ctx, id, time.Hour); err != nil || fresh {
		t.Fatalf("claim inside window: fresh=%v err=%v", fresh, err)
	}

	// Past the window the stale record no longer blocks the claim.
	s.nowFunc = func() time.Time { return base.Add(61 * time.Minute) }
	fresh, err := s.RecordIfNew(ctx, id, time.Hour)
	if err != nil {
		t.Fatalf("claim after expiry error: %v", err)
	}
	if !fresh {
		t.Fatal("expected fresh=true after the TTL window passed")
	}
}

func TestDynamoStore_DistinctIDsIndependent(t *testing.T) {
	mock := newSimpleMock()
	s := NewDynamoStore(mock, "dedup-table")
	ctx := context.Background()

	for _, id := range []string{"wamid.a", "wamid.b", "wamid.c"} {
		fresh, err := s.RecordIfNew(ctx, id, time.Hour)
		if err != nil {
			t.Fatalf("RecordIfNew(%s) error: %v", id, err)
		}
		if !fresh {
			t.Fatalf("RecordIfNew(%s) should be fresh", id)
		}
	}
	if mock.putCalls != 3 {
		t.Fatalf("expected 3 put calls, got %d", mock.putCalls)
	}
}

func TestDynamoStore_PutErrorSurfaces(t *testing.T) {
	mock := newSimpleMock()
	mock.putErr = errors.New("throughput exceeded")
	s := NewDynamoStore(mock, "dedup-table")

	fresh, err := s.RecordIfNew(context.Background(), "wamid.err", time.Hour)
	if err == nil {
		t.Fatal("expected error to surface")
	}
	if fresh {
		t.Fatal("fresh must be false on error")
	}
}
