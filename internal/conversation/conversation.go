// Package conversation implements the guest-facing state machine. The
// machine is pure: Plan inspects a session plus one inbound message and
// returns the next session, the reply to send, and at most one backend call
// to execute; Complete folds that call's outcome back into the conversation.
// All I/O stays with the caller.
package conversation

import "github.com/yalahq/go-whatsapp-guestflow/internal/session"

// Op identifies a backend operation the machine can request.
type Op string

const (
	OpVerifyEventCode  Op = "verify_event_code"
	OpRegisterGuest    Op = "register_guest"
	OpFetchBrochure    Op = "fetch_brochure"
	OpCreateDonation   Op = "create_donation"
	OpSubmitCondolence Op = "submit_condolence"
	OpFetchLocation    Op = "fetch_location"
)

// Call carries the arguments for one backend operation. Only the fields the
// Op needs are set.
type Call struct {
	Op        Op
	EventCode string
	GuestID   string
	GuestName string
	Phone     string
	Message   string
}

// Result statuses, as mapped from backend outcomes by the caller. Transport
// and server failures map to StatusError so the machine can apologize without
// knowing what broke.
const (
	StatusOK          = "ok"
	StatusNotFound    = "not_found"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// EventDetails identifies a verified event.
type EventDetails struct {
	Code string
	Name string
}

// GuestDetails identifies a registered guest profile.
type GuestDetails struct {
	ID       string
	FullName string
}

// Result is the outcome of a Call. Only the fields relevant to the Op are
// populated.
type Result struct {
	Status      string
	Event       *EventDetails
	Guest       *GuestDetails
	MediaURL    string
	CheckoutURL string
	Reference   string
	Lines       []string
}

// Reply is one outbound WhatsApp message. When DocumentLink is set the reply
// is a document and Text becomes its caption; otherwise it is plain text. A
// zero Reply means nothing is sent for this step.
type Reply struct {
	Text         string
	DocumentLink string
	DocumentName string
}

// Step is one machine transition: the session to persist (or to carry into
// Complete when Call is set), the reply for the guest, and the backend call
// to execute, if any.
type Step struct {
	Session session.Session
	Reply   Reply
	Call    *Call
}
