// Package backend talks to the events service that owns event codes, guest
// registration, brochures, donations and condolences. Transport failures are
// returned as errors; domain outcomes (unknown code, donations switched off)
// are statuses on the result.
package backend

import "context"

// Status values reported by collaborator operations.
const (
	StatusFound       = "found"
	StatusCreated     = "created"
	StatusNotFound    = "not_found"
	StatusReady       = "ready"
	StatusMissing     = "missing"
	StatusUnavailable = "unavailable"
	StatusOK          = "ok"
)

// Event identifies a verified event.
type Event struct {
	Code string // unique code, also the id used by later operations
	Name string // display name shown to the guest
}

// EventResult is the outcome of an event code verification.
type EventResult struct {
	Status string // found | not_found
	Event  *Event
}

// Guest is a registered guest profile.
type Guest struct {
	ID          string
	FullName    string
	PhoneNumber string
}

// GuestResult is the outcome of a registration or lookup.
type GuestResult struct {
	Status string // created | found | not_found
	Guest  *Guest
}

// BrochureResult carries the downloadable brochure URL when one exists.
type BrochureResult struct {
	Status   string // ready | missing
	MediaURL string
}

// DonationResult carries the hosted checkout link for a donation.
type DonationResult struct {
	Status      string // ready | unavailable
	CheckoutURL string
	Reference   string
}

// CondolenceResult is the outcome of submitting a condolence message.
type CondolenceResult struct {
	Status string // ok | unavailable
	ID     string
}

// LocationResult carries venue details as opaque display lines. The payload
// shape is owned by the backend; the bot only forwards it.
type LocationResult struct {
	Status string // ready | missing
	Lines  []string
}

// Client is the collaborator surface the conversation needs. Calls must
// honor ctx deadlines; none of them retry internally.
type Client interface {
	VerifyEventCode(ctx context.Context, code string) (EventResult, error)
	RegisterGuest(ctx context.Context, fullName, phoneNumber string) (GuestResult, error)
	LookupGuest(ctx context.Context, phoneNumber string) (GuestResult, error)
	FetchBrochure(ctx context.Context, eventID string) (BrochureResult, error)
	CreateDonation(ctx context.Context, eventID, guestID string) (DonationResult, error)
	SubmitCondolence(ctx context.Context, eventID, guestID, message string) (CondolenceResult, error)
	FetchLocation(ctx context.Context, eventID string) (LocationResult, error)
}
