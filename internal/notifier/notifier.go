package notifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	texttemplate "text/template"
	"time"

	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/pkg/shipper/purolator"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds sender identities and the internal mailbox.
type Config struct {
	Organization string
	From         string
	InternalFrom string
	InternalTo   string
}

// DefaultConfig returns the station's usual sender identities.
func DefaultConfig() Config {
	return Config{
		Organization: "Campus Stores Canada",
		From:         "Campus Stores Canada <noreply@campusstores.ca>",
		InternalFrom: "CSC Shipping <noreply@campusstores.ca>",
		InternalTo:   "google@campusstores.ca",
	}
}

// Notifier renders and sends shipment mails.
type Notifier struct {
	config Config
	mailer Mailer
	logger *otelzap.Logger
}

// New creates a notifier. Empty config fields take the defaults.
func New(cfg Config, mailer Mailer, logger *otelzap.Logger) *Notifier {
	def := DefaultConfig()
	if cfg.Organization == "" {
		cfg.Organization = def.Organization
	}
	if cfg.From == "" {
		cfg.From = def.From
	}
	if cfg.InternalFrom == "" {
		cfg.InternalFrom = def.InternalFrom
	}
	if cfg.InternalTo == "" {
		cfg.InternalTo = def.InternalTo
	}
	if mailer == nil {
		mailer = NoopMailer{}
	}
	return &Notifier{config: cfg, mailer: mailer, logger: logger}
}

// ShipmentCreated sends the recipient tracking mail, the internal
// notification and, when a label was retrieved, the label mail. The mails
// go out concurrently on the caller's context, so one failed mail does not
// cancel the others. The first failure is returned after all finish.
func (n *Notifier) ShipmentCreated(ctx context.Context, s *shipment.Shipment) error {
	var g errgroup.Group

	if s.Recipient.Email != "" && s.HasCarrierShipment() {
		g.Go(func() error { return n.send(ctx, "tracking", n.trackingMessage(s)) })
	}
	g.Go(func() error { return n.send(ctx, "internal", n.internalMessage(s)) })
	if s.Label != "" {
		g.Go(func() error {
			msg, err := n.labelMessage(s)
			if err != nil {
				return err
			}
			return n.send(ctx, "label", msg)
		})
	}

	return g.Wait()
}

func (n *Notifier) send(ctx context.Context, kind string, msg *Message) error {
	id, err := n.mailer.Send(ctx, msg)
	if err != nil {
		n.logger.Ctx(ctx).Error("Failed to send mail",
			zap.String("kind", kind),
			zap.Strings("to", msg.To),
			zap.Error(err),
		)
		return fmt.Errorf("sending %s mail: %w", kind, err)
	}
	n.logger.Ctx(ctx).Info("Mail sent",
		zap.String("kind", kind),
		zap.String("message_id", id),
	)
	return nil
}

type mailData struct {
	Organization   string
	RecipientName  string
	RecipientEmail string
	RecipientOrg   string
	TrackingNumber string
	TrackingURL    string
	Destination    string
	EstimatedCost  string
	BillingLabel   string
	BillingAccount string
	HasLabel       bool
}

func (n *Notifier) data(s *shipment.Shipment) mailData {
	billing := "Institution Account"
	if s.Billing.Type == shipment.BillingCSC {
		billing = "CSC Account"
	}
	return mailData{
		Organization:   n.config.Organization,
		RecipientName:  s.Recipient.Name,
		RecipientEmail: s.Recipient.Email,
		RecipientOrg:   s.Recipient.Organization,
		TrackingNumber: s.TrackingNumber,
		TrackingURL:    purolator.TrackingURL(s.TrackingNumber, shipDate(s)),
		Destination:    s.DestinationSummary(),
		EstimatedCost:  fmt.Sprintf("$%.2f", s.Cost()),
		BillingLabel:   billing,
		BillingAccount: s.Billing.Account,
		HasLabel:       s.Label != "",
	}
}

func (n *Notifier) trackingMessage(s *shipment.Shipment) *Message {
	d := n.data(s)
	return &Message{
		From:    n.config.From,
		To:      []string{s.Recipient.Email},
		Subject: "Your Package is on the Way - Tracking #" + s.TrackingNumber,
		HTML:    render(trackingHTML, d),
		Text:    render(trackingText, d),
	}
}

func (n *Notifier) internalMessage(s *shipment.Shipment) *Message {
	return &Message{
		From:    n.config.InternalFrom,
		To:      []string{n.config.InternalTo},
		Subject: fmt.Sprintf("New Shipment: %s - %s", s.TrackingNumber, s.Recipient.Name),
		HTML:    render(internalHTML, n.data(s)),
	}
}

func (n *Notifier) labelMessage(s *shipment.Shipment) (*Message, error) {
	pdf, err := base64.StdEncoding.DecodeString(s.Label)
	if err != nil {
		return nil, fmt.Errorf("decoding label: %w", err)
	}
	return &Message{
		From:    n.config.InternalFrom,
		To:      []string{n.config.InternalTo},
		Subject: "Shipping Label - " + s.TrackingNumber,
		HTML:    render(labelHTML, n.data(s)),
		Attachments: []Attachment{{
			Filename:    "label-" + s.TrackingNumber + ".pdf",
			ContentType: "application/pdf",
			Content:     pdf,
		}},
	}, nil
}

func shipDate(s *shipment.Shipment) time.Time {
	if s.CreatedAt.IsZero() {
		return time.Now()
	}
	return s.CreatedAt
}

type executor interface {
	Execute(w io.Writer, data any) error
}

func render(t executor, d mailData) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return ""
	}
	return buf.String()
}

var trackingHTML = template.Must(template.New("tracking").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #4f46e5;">Your Package is on the Way!</h1>
  <p>Hi {{.RecipientName}},</p>
  <p>Your package from <strong>{{.Organization}}</strong> has been shipped via Purolator Ground.</p>
  <p><strong>Tracking Number:</strong> {{.TrackingNumber}}</p>
  <p><a href="{{.TrackingURL}}">Track Your Package</a></p>
  <p>Estimated delivery: 2-5 business days</p>
  <p style="font-size: 12px; color: #9ca3af;">This is an automated message from {{.Organization}}. Please do not reply to this email.</p>
</body>
</html>`))

var trackingText = texttemplate.Must(texttemplate.New("tracking_text").Parse(`Your Package is on the Way!

Hi {{.RecipientName}},

Your package from {{.Organization}} has been shipped via Purolator Ground.

Tracking Number: {{.TrackingNumber}}
Track your package: {{.TrackingURL}}

Estimated delivery: 2-5 business days

---
This is an automated message from {{.Organization}}
Please do not reply to this email
`))

var internalHTML = template.Must(template.New("internal").Parse(`<h2>New Shipment Created</h2>
<p>A new shipment has been created at the Conference Shipping Station.</p>
<ul>
  <li><strong>Tracking Number:</strong> <a href="{{.TrackingURL}}">{{.TrackingNumber}}</a></li>
  <li><strong>Recipient:</strong> {{.RecipientName}} ({{.RecipientEmail}})</li>
  <li><strong>Organization:</strong> {{.RecipientOrg}}</li>
  <li><strong>Destination:</strong> {{.Destination}}</li>
  <li><strong>Estimated Cost:</strong> {{.EstimatedCost}}</li>
  <li><strong>Billing:</strong> {{.BillingLabel}} #{{.BillingAccount}}</li>
</ul>
{{if .HasLabel}}<p>The shipping label is sent in a separate mail.</p>{{else}}<p>No label was retrieved; fetch it from the carrier portal.</p>{{end}}`))

var labelHTML = template.Must(template.New("label").Parse(`<h2>Shipping Label</h2>
<ul>
  <li><strong>Tracking Number:</strong> {{.TrackingNumber}}</li>
  <li><strong>Recipient:</strong> {{.RecipientName}} ({{.RecipientEmail}})</li>
  <li><strong>Destination:</strong> {{.Destination}}</li>
</ul>
<p><strong>The thermal label PDF is attached to this email.</strong></p>`))
