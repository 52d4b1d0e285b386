package conversation

import (
	"strings"

	"github.com/yalahq/go-whatsapp-guestflow/internal/session"
)

var greetings = map[string]bool{
	"hi":             true,
	"hello":          true,
	"hey":            true,
	"good morning":   true,
	"good afternoon": true,
	"good evening":   true,
}

var restartCommands = map[string]bool{
	"restart":    true,
	"reset":      true,
	"start over": true,
}

// Plan advances a conversation by one inbound message. Restart and help
// commands apply in every state; everything else dispatches on the session
// state. When the next reply depends on a backend outcome the returned Step
// carries a Call and no Reply, and the caller must feed the Result to
// Complete.
func Plan(sess session.Session, input string) Step {
	text := strings.TrimSpace(input)
	lower := strings.ToLower(text)

	if restartCommands[lower] {
		return Step{Session: session.New(sess.SubscriberID), Reply: Reply{Text: welcomeText}}
	}
	if lower == "help" || lower == "?" {
		if sess.EventCode != "" {
			return Step{Session: sess, Call: &Call{Op: OpFetchLocation, EventCode: sess.EventCode}}
		}
		return Step{Session: sess, Reply: Reply{Text: helpReply(sess, nil)}}
	}

	switch sess.State {
	case session.StateAwaitingEventCode:
		return planEventCode(sess, text, lower)
	case session.StateAwaitingGuestName:
		return planGuestName(sess, text)
	case session.StateMainMenu:
		return planMainMenu(sess, text)
	case session.StateAwaitingCondolenceText:
		return planCondolence(sess, text, lower)
	case session.StateAwaitingBrochureAck, session.StateAwaitingDonationFlow:
		// an in-flight state only reaches the store when a turn was cut short;
		// the backend outcome is unknown, so settle back on the menu
		sess.State = session.StateMainMenu
		return Step{Session: sess, Reply: Reply{Text: menuText(sess.GuestName)}}
	default:
		return Step{Session: session.New(sess.SubscriberID), Reply: Reply{Text: welcomeText}}
	}
}

// Complete folds a backend outcome into the conversation and yields the
// session to persist plus the guest's reply. It never issues another Call.
func Complete(sess session.Session, call Call, res Result) Step {
	switch call.Op {
	case OpVerifyEventCode:
		return completeVerify(sess, call, res)
	case OpRegisterGuest:
		return completeRegister(sess, res)
	case OpFetchBrochure:
		return completeBrochure(sess, res)
	case OpCreateDonation:
		return completeDonation(sess, res)
	case OpSubmitCondolence:
		return completeCondolence(sess, res)
	case OpFetchLocation:
		return Step{Session: sess, Reply: Reply{Text: helpReply(sess, res.Lines)}}
	default:
		return Step{Session: sess, Reply: Reply{Text: helpReply(sess, nil)}}
	}
}

func planEventCode(sess session.Session, text, lower string) Step {
	if text == "" || greetings[strings.TrimRight(lower, "!., ")] {
		return Step{Session: sess, Reply: Reply{Text: welcomeText}}
	}
	return Step{Session: sess, Call: &Call{Op: OpVerifyEventCode, EventCode: strings.ToUpper(text)}}
}

func planGuestName(sess session.Session, text string) Step {
	name := strings.Join(strings.Fields(text), " ")
	if name == "" {
		return Step{Session: sess, Reply: Reply{Text: namePromptText}}
	}
	sess.GuestName = name
	sess.State = session.StateMainMenu
	return Step{Session: sess, Call: &Call{
		Op:        OpRegisterGuest,
		GuestName: name,
		Phone:     normalizePhone(sess.SubscriberID),
	}}
}

func planMainMenu(sess session.Session, text string) Step {
	switch text {
	case "1":
		sess.State = session.StateAwaitingBrochureAck
		return Step{Session: sess, Call: &Call{Op: OpFetchBrochure, EventCode: sess.EventCode}}
	case "2":
		if sess.GuestID == "" {
			return Step{Session: sess, Reply: Reply{Text: withMenu(guestProfileMissingText, sess.GuestName)}}
		}
		sess.State = session.StateAwaitingDonationFlow
		return Step{Session: sess, Call: &Call{Op: OpCreateDonation, EventCode: sess.EventCode, GuestID: sess.GuestID}}
	case "3":
		sess.State = session.StateAwaitingCondolenceText
		return Step{Session: sess, Reply: Reply{Text: condolencePromptText}}
	default:
		return Step{Session: sess, Reply: Reply{Text: withMenu(menuInvalidText, sess.GuestName)}}
	}
}

func planCondolence(sess session.Session, text, lower string) Step {
	if lower == "back" || lower == "menu" {
		sess.State = session.StateMainMenu
		return Step{Session: sess, Reply: Reply{Text: menuText(sess.GuestName)}}
	}
	if text == "" {
		return Step{Session: sess, Reply: Reply{Text: condolenceEmptyText}}
	}
	if sess.GuestID == "" {
		sess.State = session.StateMainMenu
		return Step{Session: sess, Reply: Reply{Text: withMenu(guestProfileMissingText, sess.GuestName)}}
	}
	// the menu is the landing state whatever the submission outcome, so move
	// now rather than in Complete
	sess.State = session.StateMainMenu
	return Step{Session: sess, Call: &Call{
		Op:        OpSubmitCondolence,
		EventCode: sess.EventCode,
		GuestID:   sess.GuestID,
		Message:   text,
	}}
}

func completeVerify(sess session.Session, call Call, res Result) Step {
	switch res.Status {
	case StatusOK:
		code, name := call.EventCode, ""
		if res.Event != nil {
			if res.Event.Code != "" {
				code = res.Event.Code
			}
			name = res.Event.Name
		}
		if name == "" {
			name = code
		}
		sess.State = session.StateAwaitingGuestName
		sess.EventCode = code
		sess.EventName = name
		return Step{Session: sess, Reply: Reply{Text: eventConfirmedText(name)}}
	case StatusNotFound:
		return Step{Session: sess, Reply: Reply{Text: eventCodeNotFoundText}}
	default:
		return Step{Session: sess, Reply: Reply{Text: eventCodeTroubleText}}
	}
}

func completeRegister(sess session.Session, res Result) Step {
	// registration is best effort: the menu shows either way, and the options
	// that need a guest id re-check it before use
	if res.Guest != nil && res.Guest.ID != "" {
		sess.GuestID = res.Guest.ID
	}
	return Step{Session: sess, Reply: Reply{Text: menuText(sess.GuestName)}}
}

func completeBrochure(sess session.Session, res Result) Step {
	sess.State = session.StateMainMenu
	switch res.Status {
	case StatusOK:
		return Step{Session: sess, Reply: Reply{
			Text:         withMenu(brochureCaptionText, sess.GuestName),
			DocumentLink: res.MediaURL,
			DocumentName: brochureFilename,
		}}
	case StatusNotFound:
		return Step{Session: sess, Reply: Reply{Text: withMenu(brochureMissingText, sess.GuestName)}}
	default:
		return Step{Session: sess, Reply: Reply{Text: withMenu(brochureErrorText, sess.GuestName)}}
	}
}

func completeDonation(sess session.Session, res Result) Step {
	sess.State = session.StateMainMenu
	switch res.Status {
	case StatusOK:
		return Step{Session: sess, Reply: Reply{Text: withMenu(donationReadyText(res.CheckoutURL, res.Reference), sess.GuestName)}}
	case StatusUnavailable:
		return Step{Session: sess, Reply: Reply{Text: withMenu(donationUnavailableText, sess.GuestName)}}
	default:
		return Step{Session: sess, Reply: Reply{Text: withMenu(donationErrorText, sess.GuestName)}}
	}
}

func completeCondolence(sess session.Session, res Result) Step {
	sess.State = session.StateMainMenu
	switch res.Status {
	case StatusOK:
		return Step{Session: sess, Reply: Reply{Text: withMenu(condolenceSentText, sess.GuestName)}}
	case StatusUnavailable:
		return Step{Session: sess, Reply: Reply{Text: withMenu(condolenceUnavailableText, sess.GuestName)}}
	default:
		return Step{Session: sess, Reply: Reply{Text: withMenu(condolenceErrorText, sess.GuestName)}}
	}
}

// normalizePhone reduces a WhatsApp subscriber id to the digits the guest
// registry stores: "whatsapp:+233 20 000 0001" becomes "233200000001".
func normalizePhone(subscriberID string) string {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(subscriberID)), "whatsapp:")
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
