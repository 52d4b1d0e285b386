// Package gateway abstracts the provider send side of the bot. The worker
// talks to a Sender; the metacloud subpackage implements it against the Meta
// WhatsApp Cloud API.
package gateway

import "context"

// Sender delivers outbound WhatsApp messages. Implementations must be safe
// for concurrent use by multiple workers.
type Sender interface {
	// SendText sends a plain text message.
	SendText(ctx context.Context, to, body string) error
	// SendDocument sends a document by public link. The caption renders under
	// the attachment and the filename is what the recipient's client shows.
	SendDocument(ctx context.Context, to, link, caption, filename string) error
}
