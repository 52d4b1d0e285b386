package session

import (
	"context"
	"time"
)

// Conversation states. A session always sits in exactly one of these between
// messages; the two in-flight states resolve back to the menu within the same
// processing turn and are never expected to be read back from the store.
const (
	StateAwaitingEventCode      = "AWAITING_EVENT_CODE"
	StateAwaitingGuestName      = "AWAITING_GUEST_NAME"
	StateMainMenu               = "MAIN_MENU"
	StateAwaitingBrochureAck    = "AWAITING_BROCHURE_ACK"
	StateAwaitingDonationFlow   = "AWAITING_DONATION_FLOW"
	StateAwaitingCondolenceText = "AWAITING_CONDOLENCE_TEXT"
)

// Session is the per-subscriber conversation state persisted between
// messages. SubscriberID is the WhatsApp wa_id exactly as delivered by the
// provider.
type Session struct {
	SubscriberID   string    `dynamodbav:"subscriber_id"` // PK
	State          string    `dynamodbav:"state"`
	EventCode      string    `dynamodbav:"event_code,omitempty"`
	EventName      string    `dynamodbav:"event_name,omitempty"`
	GuestName      string    `dynamodbav:"guest_name,omitempty"`
	GuestID        string    `dynamodbav:"guest_id,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	LastActivityAt time.Time `dynamodbav:"last_activity_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// New returns the default session a subscriber starts (or restarts) in.
func New(subscriberID string) Session {
	return Session{
		SubscriberID: subscriberID,
		State:        StateAwaitingEventCode,
	}
}

// Store persists sessions with idle expiry. Get returns a fresh default
// session when the subscriber has none or the stored one has expired; Put
// refreshes the TTL on every write.
type Store interface {
	Get(ctx context.Context, subscriberID string) (Session, error)
	Put(ctx context.Context, sess Session) error
}
