// Package dedup decides whether a provider message id has been seen before.
// WhatsApp redelivers webhooks aggressively on any slow or non-2xx response,
// so every inbound message claims its id here exactly once per TTL window
// before any processing starts.
package dedup

import (
	"context"
	"time"
)

// Store records message ids atomically. RecordIfNew returns true for the
// first caller of a given id within the TTL window and false for everyone
// else; with a shared backend this holds across processes.
type Store interface {
	RecordIfNew(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
}
