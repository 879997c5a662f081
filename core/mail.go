package core

import (
	"context"
	"net/mail"
)

type (
	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently, errors are only logged
		SendMessages(messages ...*EmailMessage)
		// SendMessage sends one message and reports delivery failures to the caller
		SendMessage(ctx context.Context, msg *EmailMessage) error
	}
)

func NewTextMessage(recipient, subject, text string) *EmailMessage {
	return &EmailMessage{
		To:          []mail.Address{{Address: recipient}},
		Subject:     subject,
		TextContent: text,
	}
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
