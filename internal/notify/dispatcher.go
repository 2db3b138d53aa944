// Package notify dispatches lead-facing messages across delivery channels
// with a fixed fallback order: WhatsApp first, then SMS, then email.
package notify

import (
	"context"

	"estatefunnel_backend/internal/email"
	"estatefunnel_backend/platform/logger"
)

// Channel names reported in dispatch results and audit entries.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
)

// TextSender delivers a plain text message to a phone number.
type TextSender interface {
	SendMessage(ctx context.Context, phoneNumber, message string) error
}

// Recipient is the contact information for a lead.
type Recipient struct {
	Name  string
	Phone string
	Email string
}

// Message is a channel-agnostic outbound message. The subject is only
// used by the email channel.
type Message struct {
	Subject string
	Body    string
}

// Result records which channels were tried and which one delivered.
type Result struct {
	Attempted []string `json:"attempted"`
	Channel   string   `json:"channel,omitempty"`
	Delivered bool     `json:"delivered"`
}

// Dispatcher tries each configured channel in priority order until one
// delivers. A channel is skipped when it is not configured or the
// recipient lacks the contact field it needs.
type Dispatcher struct {
	chat  TextSender
	sms   TextSender
	email email.Sender
	log   *logger.Logger
}

// NewDispatcher creates a dispatcher. Any sender may be nil, in which
// case that channel is never attempted.
func NewDispatcher(chat, sms TextSender, mail email.Sender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{chat: chat, sms: sms, email: mail, log: log}
}

// Dispatch sends the message to the recipient, falling through the
// channel priority order on failure. It never returns an error: a fully
// failed dispatch is reported through Result.Delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, rcpt Recipient, msg Message) Result {
	var result Result

	if d.chat != nil && rcpt.Phone != "" {
		result.Attempted = append(result.Attempted, ChannelWhatsApp)
		if err := d.chat.SendMessage(ctx, rcpt.Phone, msg.Body); err == nil {
			return d.delivered(result, ChannelWhatsApp, rcpt)
		}
	}

	if d.sms != nil && rcpt.Phone != "" {
		result.Attempted = append(result.Attempted, ChannelSMS)
		if err := d.sms.SendMessage(ctx, rcpt.Phone, msg.Body); err == nil {
			return d.delivered(result, ChannelSMS, rcpt)
		}
	}

	if d.email != nil && rcpt.Email != "" {
		result.Attempted = append(result.Attempted, ChannelEmail)
		if err := d.email.SendMessage(ctx, rcpt.Email, msg.Subject, msg.Body); err == nil {
			return d.delivered(result, ChannelEmail, rcpt)
		}
	}

	if d.log != nil {
		d.log.NotificationResult(rcpt.Name, "", false)
	}
	return result
}

func (d *Dispatcher) delivered(result Result, channel string, rcpt Recipient) Result {
	result.Channel = channel
	result.Delivered = true
	if d.log != nil {
		d.log.NotificationResult(rcpt.Name, channel, true)
	}
	return result
}
