// Package email delivers transactional email for the sales funnel.
package email

import "context"

// Sender delivers rendered messages to a single recipient.
type Sender interface {
	SendMessage(ctx context.Context, toEmail, subject, body string) error
}

// Attachment is a file attached to an outgoing email.
type Attachment struct {
	FileName string
	Content  []byte
}
