package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/internal/store"
	"github.com/tournevent/kiosk/pkg/invoice"
	"go.uber.org/zap"
)

// SendInvoiceReminder re-sends the invoice of a shipment.
func (o *Orchestrator) SendInvoiceReminder(ctx context.Context, shipmentID string) (*shipment.Shipment, error) {
	s, err := o.invoicedShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if _, err := o.invoicer.SendReminder(ctx, s.Invoice.ID); err != nil {
		o.recordInvoice("reminder_failed")
		return nil, fmt.Errorf("sending reminder for %s: %w", shipmentID, err)
	}
	o.recordInvoice("reminded")
	o.logger.Ctx(ctx).Info("Invoice reminder sent",
		zap.String("shipment_id", s.ID),
		zap.String("invoice_id", s.Invoice.ID),
	)
	return s, nil
}

// VoidInvoice voids the invoice of a shipment and records the shipment as
// voided. A paid shipment stays paid.
func (o *Orchestrator) VoidInvoice(ctx context.Context, shipmentID string) (*shipment.Shipment, error) {
	s, err := o.invoicedShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if _, err := o.invoicer.VoidInvoice(ctx, s.Invoice.ID); err != nil {
		o.recordInvoice("void_failed")
		return nil, fmt.Errorf("voiding invoice for %s: %w", shipmentID, err)
	}
	o.recordInvoice("voided")

	s, changed, _, err := o.projectPayment(ctx, s, shipment.PaymentVoided, o.now())
	if err != nil {
		return nil, fmt.Errorf("recording void for %s: %w", shipmentID, err)
	}
	if changed {
		o.publishPaymentChange(ctx, s, "")
	}
	return s, nil
}

// CreateInvoice bills a CSC shipment that has no invoice yet, typically
// one whose automatic invoice failed.
func (o *Orchestrator) CreateInvoice(ctx context.Context, shipmentID string) (*shipment.Shipment, error) {
	if o.invoicer == nil {
		return nil, ErrNoInvoice
	}
	s, err := o.store.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	switch {
	case s.Billing.Type != shipment.BillingCSC:
		return nil, fmt.Errorf("%s is billed to account %s: %w", shipmentID, s.Billing.Account, ErrNotInvoiceable)
	case !s.HasCarrierShipment():
		return nil, fmt.Errorf("%s: %w", shipmentID, ErrNoCarrierShipment)
	case s.Cost() <= 0:
		return nil, fmt.Errorf("%s has no cost: %w", shipmentID, ErrNotInvoiceable)
	case s.Invoice != nil && s.Invoice.ID != "":
		return nil, fmt.Errorf("%s has invoice %s: %w", shipmentID, s.Invoice.ID, ErrAlreadyInvoiced)
	}

	if err := o.invoice(ctx, s); err != nil {
		return nil, fmt.Errorf("invoicing %s: %w", shipmentID, err)
	}
	return s, nil
}

func (o *Orchestrator) invoicedShipment(ctx context.Context, shipmentID string) (*shipment.Shipment, error) {
	if o.invoicer == nil {
		return nil, ErrNoInvoice
	}
	s, err := o.store.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if s.Invoice == nil || s.Invoice.ID == "" {
		return nil, fmt.Errorf("%s: %w", shipmentID, ErrNoInvoice)
	}
	return s, nil
}

// WebhookResult describes what a payment event did.
type WebhookResult string

// Webhook results.
const (
	WebhookUpdated   WebhookResult = "updated"
	WebhookUnchanged WebhookResult = "unchanged"
	WebhookIgnored   WebhookResult = "ignored"
)

// ApplyPaymentEvent projects a verified payment event onto its shipment.
// Events of other kinds, events without a shipment reference and events for
// unknown shipments are ignored. Duplicate, stale and regressing events
// leave the shipment unchanged. Only store failures are returned.
func (o *Orchestrator) ApplyPaymentEvent(ctx context.Context, e *invoice.Event) (WebhookResult, error) {
	logger := o.logger.Ctx(ctx)
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("event_type", e.Type),
		zap.String("shipment_id", e.ShipmentID),
	}

	if !e.Recognized() {
		return WebhookIgnored, nil
	}
	if e.ShipmentID == "" {
		logger.Info("Payment event without shipment reference", fields...)
		return WebhookIgnored, nil
	}

	s, err := o.store.GetShipmentByID(ctx, e.ShipmentID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("Payment event for unknown shipment", fields...)
		return WebhookIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("loading shipment %s: %w", e.ShipmentID, err)
	}
	if s.Invoice != nil && e.InvoiceID != "" && s.Invoice.ID != e.InvoiceID {
		logger.Warn("Payment event for a different invoice",
			append(fields, zap.String("invoice_id", e.InvoiceID), zap.String("current_invoice_id", s.Invoice.ID))...)
		return WebhookIgnored, nil
	}

	s, changed, previous, err := o.projectPayment(ctx, s, shipment.PaymentStatus(e.PaymentStatus), e.Created)
	if err != nil {
		return "", fmt.Errorf("updating payment status of %s: %w", e.ShipmentID, err)
	}
	if !changed {
		return WebhookUnchanged, nil
	}

	logger.Info("Payment status updated",
		append(fields,
			zap.String("from", string(previous)),
			zap.String("to", string(s.PaymentStatus)),
		)...)
	o.publishPaymentChange(ctx, s, e.ID)
	return WebhookUpdated, nil
}

// maxPaymentAttempts bounds the re-reads after losing a concurrent write.
const maxPaymentAttempts = 5

// projectPayment applies a payment status to s and writes it only if the
// stored payment state is still the one s was read with. When another
// writer got there first it re-reads and projects again, so the stored
// result is the same as if the events had been applied one at a time.
// It returns the final shipment, whether it changed and the status the
// change started from.
func (o *Orchestrator) projectPayment(ctx context.Context, s *shipment.Shipment, status shipment.PaymentStatus, at time.Time) (*shipment.Shipment, bool, shipment.PaymentStatus, error) {
	for attempt := 1; ; attempt++ {
		from := store.PaymentGuard{Status: s.PaymentStatus, EventAt: s.PaymentEventAt}
		if !s.ApplyPaymentEvent(status, at) {
			return s, false, from.Status, nil
		}

		err := o.store.UpdateShipmentFields(ctx, s.ID, store.PaymentUpdate(s, from))
		if err == nil {
			return s, true, from.Status, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt == maxPaymentAttempts {
			return nil, false, "", err
		}

		o.logger.Ctx(ctx).Debug("Payment state changed concurrently, retrying",
			zap.String("shipment_id", s.ID),
			zap.Int("attempt", attempt),
		)
		if s, err = o.store.GetShipmentByID(ctx, s.ID); err != nil {
			return nil, false, "", err
		}
	}
}

func (o *Orchestrator) publishPaymentChange(ctx context.Context, s *shipment.Shipment, eventID string) {
	if err := o.publisher.PaymentStatusChanged(ctx, s, eventID); err != nil {
		o.logger.Ctx(ctx).Warn("Failed to publish payment event",
			zap.String("shipment_id", s.ID),
			zap.Error(err),
		)
	}
}
