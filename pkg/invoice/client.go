// Package invoice re-bills CSC shipments to recipients through Stripe.
package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// DefaultDueDays is the payment term applied when none is configured.
const DefaultDueDays = 30

// Config holds the invoice client configuration. Key selection between live
// and test mode happens before construction.
type Config struct {
	SecretKey     string
	WebhookSecret string
	DueDays       int
	UseMock       bool
}

// Contact is the person billed for a shipment.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// ShipmentInvoiceRequest is everything needed to bill one shipment.
type ShipmentInvoiceRequest struct {
	ShipmentID         string
	TrackingNumber     string
	TrackingURL        string
	Contact            Contact
	Organization       string
	Amount             float64
	DestinationSummary string
	DueDays            int
}

// Client creates and manages shipment invoices.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new invoice client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewStripeAPIClient(cfg.SecretKey)
	}
	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new invoice client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.DueDays <= 0 {
		cfg.DueDays = DefaultDueDays
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("invoice")
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// IsLiveKey reports whether a Stripe key belongs to live mode.
func IsLiveKey(key string) bool {
	return strings.HasPrefix(key, "sk_live_") || strings.HasPrefix(key, "pk_live_") || strings.HasPrefix(key, "rk_live_")
}

// CreateInvoiceForShipment creates a fresh customer, a send_invoice draft
// with one line item, and finalizes it. Finalizing sends the invoice to the
// contact.
func (c *Client) CreateInvoiceForShipment(ctx context.Context, req *ShipmentInvoiceRequest) (*Invoice, error) {
	ctx, span := c.tracer.Start(ctx, "invoice.CreateInvoiceForShipment",
		trace.WithAttributes(
			attribute.String("shipment.id", req.ShipmentID),
			attribute.String("shipment.tracking_number", req.TrackingNumber),
		))
	defer span.End()

	if req.Amount <= 0 {
		return nil, c.fail(ctx, span, "create", ErrInvalidAmount)
	}
	if strings.TrimSpace(req.Contact.Email) == "" {
		return nil, c.fail(ctx, span, "create", ErrMissingEmail)
	}

	dueDays := req.DueDays
	if dueDays <= 0 {
		dueDays = c.config.DueDays
	}
	metadata := map[string]string{
		MetadataShipmentID:     req.ShipmentID,
		MetadataTrackingNumber: req.TrackingNumber,
	}

	customerMeta := map[string]string{MetadataShipmentID: req.ShipmentID}
	if req.Organization != "" {
		customerMeta[MetadataOrganization] = req.Organization
	}
	customerID, err := c.apiClient.CreateCustomer(ctx, &CustomerRequest{
		Name:         req.Contact.Name,
		Email:        req.Contact.Email,
		Phone:        req.Contact.Phone,
		Organization: req.Organization,
		Metadata:     customerMeta,
	})
	if err != nil {
		return nil, c.fail(ctx, span, "create customer", err)
	}

	draft, err := c.apiClient.CreateInvoice(ctx, &DraftRequest{
		CustomerID:   customerID,
		Description:  fmt.Sprintf("Shipping charges for Purolator shipment %s", req.TrackingNumber),
		DaysUntilDue: int64(dueDays),
		Metadata:     metadata,
	})
	if err != nil {
		return nil, c.fail(ctx, span, "create", err)
	}

	if err := c.apiClient.AddLineItem(ctx, &LineItemRequest{
		CustomerID:  customerID,
		InvoiceID:   draft.ID,
		AmountCents: ToCents(req.Amount),
		Description: LineItemDescription(req.TrackingNumber, req.TrackingURL, req.DestinationSummary),
	}); err != nil {
		return nil, c.fail(ctx, span, "add line item", err)
	}

	final, err := c.apiClient.FinalizeInvoice(ctx, draft.ID)
	if err != nil {
		return nil, c.fail(ctx, span, "finalize", err)
	}

	span.SetAttributes(attribute.String("invoice.id", final.ID))
	c.logger.Ctx(ctx).Info("Invoice created",
		zap.String("shipment_id", req.ShipmentID),
		zap.String("invoice_id", final.ID),
		zap.Float64("amount", req.Amount),
	)
	return final, nil
}

// SendReminder re-sends an open invoice.
func (c *Client) SendReminder(ctx context.Context, invoiceID string) (*Invoice, error) {
	ctx, span := c.tracer.Start(ctx, "invoice.SendReminder", trace.WithAttributes(attribute.String("invoice.id", invoiceID)))
	defer span.End()

	inv, err := c.apiClient.SendInvoice(ctx, invoiceID)
	if err != nil {
		return nil, c.fail(ctx, span, "send", err)
	}
	return inv, nil
}

// VoidInvoice voids an open invoice.
func (c *Client) VoidInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	ctx, span := c.tracer.Start(ctx, "invoice.VoidInvoice", trace.WithAttributes(attribute.String("invoice.id", invoiceID)))
	defer span.End()

	inv, err := c.apiClient.VoidInvoice(ctx, invoiceID)
	if err != nil {
		return nil, c.fail(ctx, span, "void", err)
	}
	return inv, nil
}

// ParseWebhook verifies the signature header against the configured
// webhook secret and decodes the event. Verification happens before any
// payload parsing. A signature failure wraps ErrInvalidSignature; a signed
// payload that does not decode wraps ErrMalformedEvent.
func (c *Client) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	out, err := eventFromStripe(&event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// LineItemDescription embeds the tracking number and tracking link.
func LineItemDescription(trackingNumber, trackingURL, destination string) string {
	var b strings.Builder
	b.WriteString("Purolator Ground shipping - Tracking #")
	b.WriteString(trackingNumber)
	if destination != "" {
		b.WriteString(" to ")
		b.WriteString(destination)
	}
	if trackingURL != "" {
		b.WriteString(" (track: ")
		b.WriteString(trackingURL)
		b.WriteString(")")
	}
	return b.String()
}

// ToCents converts a CAD amount to integer cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (c *Client) fail(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Ctx(ctx).Error("Invoice API error", zap.String("operation", op), zap.Error(err))
	return err
}

// ============================================================================
// Webhook events
// ============================================================================

// Event types the kiosk reacts to.
const (
	EventInvoicePaid          = "invoice.paid"
	EventPaymentFailed        = "invoice.payment_failed"
	EventInvoiceVoided        = "invoice.voided"
	EventMarkedUncollectible  = "invoice.marked_uncollectible"
	EventInvoiceSent          = "invoice.sent"
	EventInvoiceFinalized     = "invoice.finalized"
	EventInvoicePaymentAction = "invoice.payment_action_required"
)

// Payment statuses an event resolves to.
const (
	PaymentPending       = "pending"
	PaymentPaid          = "paid"
	PaymentFailed        = "payment_failed"
	PaymentVoided        = "voided"
	PaymentUncollectible = "uncollectible"
)

var eventStatuses = map[string]string{
	EventInvoicePaid:          PaymentPaid,
	EventPaymentFailed:        PaymentFailed,
	EventInvoiceVoided:        PaymentVoided,
	EventMarkedUncollectible:  PaymentUncollectible,
	EventInvoiceSent:          PaymentPending,
	EventInvoiceFinalized:     PaymentPending,
	EventInvoicePaymentAction: PaymentPending,
}

// Event is a verified provider event about an invoice.
type Event struct {
	ID         string
	Type       string
	Created    time.Time
	InvoiceID  string
	ShipmentID string

	// PaymentStatus is empty for event types the kiosk ignores.
	PaymentStatus string
}

// Recognized reports whether the event maps to a payment status.
func (e *Event) Recognized() bool {
	return e.PaymentStatus != ""
}

func eventFromStripe(event *stripe.Event) (*Event, error) {
	out := &Event{
		ID:            event.ID,
		Type:          string(event.Type),
		Created:       time.Unix(event.Created, 0).UTC(),
		PaymentStatus: eventStatuses[string(event.Type)],
	}
	if !strings.HasPrefix(out.Type, "invoice.") || event.Data == nil {
		return out, nil
	}

	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", out.Type, err)
	}
	out.InvoiceID = inv.ID
	out.ShipmentID = inv.Metadata[MetadataShipmentID]
	return out, nil
}
