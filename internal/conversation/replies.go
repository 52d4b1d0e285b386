package conversation

import (
	"fmt"
	"strings"

	"github.com/yalahq/go-whatsapp-guestflow/internal/session"
)

// Guest-facing copy. WhatsApp renders *bold* natively, so replies bold the
// tokens a guest is expected to type back.
const (
	welcomeText = "Hello 👋\nWelcome to Yala.\nPlease enter the *Event Code* on your card to continue."

	eventCodeNotFoundText = "Sorry, that event code was not found.\nPlease check the card and try again."

	eventCodeTroubleText = "Sorry, we're having trouble confirming your event code right now.\nPlease try again in a moment."

	namePromptText = "Please enter your name to continue (e.g., Ama / Kofi)."

	condolencePromptText = "Please type the message you would like to send to the family.\n(Reply *back* to return to the menu.)"

	condolenceEmptyText = "Please type the message you would like to send to the family."

	brochureCaptionText = "Here is the event brochure.\nYou may download it to your phone."

	brochureMissingText = "Sorry, the brochure is not available right now."

	brochureErrorText = "Sorry, we couldn't fetch the brochure right now.\nPlease try again later."

	donationUnavailableText = "This event does not accept donations at the moment."

	donationErrorText = "We couldn't complete the donation right now.\nPlease try again later."

	condolenceSentText = "Thank you.\nYour message has been sent to the family."

	condolenceUnavailableText = "Sorry, condolence messages are not available for this event."

	condolenceErrorText = "Sorry, we couldn't send your message right now.\nPlease try again later."

	guestProfileMissingText = "We couldn't identify your guest profile.\nPlease type *restart* and try again."

	menuInvalidText = "Please reply with *1*, *2*, or *3*."

	helpText = "You can reply with:\n- your event code to start\n- *1* for the brochure\n- *2* to donate\n- *3* to send a message\n- *restart* to start over"

	brochureFilename = "brochure.pdf"
)

func eventConfirmedText(eventName string) string {
	return fmt.Sprintf("Thank you.\nThis is the funeral/event of *%s*.\n\nPlease enter your *name* to continue.", eventName)
}

func menuText(guestName string) string {
	return fmt.Sprintf("Thank you, %s.\nHow can we help you today?\n\n1. 📄 Download event brochure\n2. 💝 Give / Donate\n3. 🕊️ Send condolence / message", guestName)
}

// withMenu appends the main menu under a status line.
func withMenu(text, guestName string) string {
	return text + "\n\n" + menuText(guestName)
}

func donationReadyText(checkoutURL, reference string) string {
	text := "Thank you for your generosity 💝\nUse this secure link to complete your donation:\n" + checkoutURL
	if reference != "" {
		text += "\nReference: " + reference
	}
	return text
}

// helpReply renders the command summary, any venue lines fetched for the
// guest's event, and the menu once the guest is past registration.
func helpReply(sess session.Session, lines []string) string {
	text := helpText
	if len(lines) > 0 {
		text += "\n\n" + strings.Join(lines, "\n")
	}
	if sess.GuestName != "" {
		text += "\n\n" + menuText(sess.GuestName)
	}
	return text
}
