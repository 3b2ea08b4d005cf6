// Package mailbox defines the boundary to whatever mailbox the agent
// watches. Provider internals, IMAP or Graph or anything else, stay behind
// the Client interface.
package mailbox

import (
	"context"

	"github.com/mailmend/mailmend/service/analysis"
)

// Message is an inbound mail message, attachments excluded.
type Message struct {
	// ID is the provider-assigned message identifier, stable across polls.
	ID string
	// Subject is the message subject line.
	Subject string
	// From is the sender address.
	From string
}

// Client reads a mailbox.
type Client interface {
	// ListUnread returns the unread messages currently in the mailbox.
	ListUnread(ctx context.Context) ([]Message, error)

	// DownloadAttachments fetches the attachments of a message.
	DownloadAttachments(ctx context.Context, messageID string) ([]analysis.Attachment, error)

	// MarkRead marks a message as read so the next poll skips it.
	MarkRead(ctx context.Context, messageID string) error
}
