package webhook

// Meta Cloud API webhook envelope, pared down to the fields the bot reads.
// Delivery and read receipts arrive on the same endpoint with an empty
// Messages slice.

type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text"`
	Interactive *Interactive `json:"interactive"`
	Button      *Button      `json:"button"`
}

type Text struct {
	Body string `json:"body"`
}

type Interactive struct {
	Type        string       `json:"type"`
	ListReply   *ReplyChoice `json:"list_reply"`
	ButtonReply *ReplyChoice `json:"button_reply"`
}

type ReplyChoice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Button struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// InboundMessage is one user message flattened out of the envelope, keyed the
// way the rest of the pipeline wants it.
type InboundMessage struct {
	SubscriberID string
	MessageID    string
	Text         string
}

// ExtractMessages flattens user messages out of an envelope. Messages of
// types the bot cannot read (images, audio, stickers) come through with empty
// text; the conversation machine answers those with the prompt for its
// current state instead of silence.
func ExtractMessages(env Envelope) []InboundMessage {
	var out []InboundMessage
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.From == "" || msg.ID == "" {
					continue
				}
				out = append(out, InboundMessage{
					SubscriberID: msg.From,
					MessageID:    msg.ID,
					Text:         messageText(msg),
				})
			}
		}
	}
	return out
}

// messageText reduces any supported message shape to the text the machine
// consumes. Interactive replies prefer the stable id over the display title.
func messageText(msg Message) string {
	switch {
	case msg.Text != nil:
		return msg.Text.Body
	case msg.Interactive != nil:
		if c := msg.Interactive.ListReply; c != nil {
			return choiceText(c)
		}
		if c := msg.Interactive.ButtonReply; c != nil {
			return choiceText(c)
		}
		return ""
	case msg.Button != nil:
		if msg.Button.Payload != "" {
			return msg.Button.Payload
		}
		return msg.Button.Text
	default:
		return ""
	}
}

func choiceText(c *ReplyChoice) string {
	if c.ID != "" {
		return c.ID
	}
	return c.Title
}
