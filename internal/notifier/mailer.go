// Package notifier sends the shipment mails: the recipient's tracking mail
// and the internal notification to the station office.
package notifier

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outgoing mail.
type Message struct {
	From        string
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Mailer delivers a message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// ResendMailer delivers mail through the Resend API.
type ResendMailer struct {
	client *resend.Client
}

// NewResendMailer creates a mailer authenticated with apiKey.
func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey)}
}

// Send implements Mailer.
func (r *ResendMailer) Send(ctx context.Context, msg *Message) (string, error) {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}

	sent, err := r.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return sent.Id, nil
}

// NoopMailer drops every message. It is used when no mail key is configured.
type NoopMailer struct{}

// Send implements Mailer.
func (NoopMailer) Send(ctx context.Context, msg *Message) (string, error) {
	return "", nil
}

var (
	_ Mailer = (*ResendMailer)(nil)
	_ Mailer = NoopMailer{}
)
