package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/internal/store"
	"github.com/tournevent/kiosk/pkg/invoice"
	"github.com/tournevent/kiosk/pkg/shipper"
	"github.com/tournevent/kiosk/pkg/shipper/purolator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Shipment outcomes recorded in metrics.
const (
	OutcomeCreated      = "created"
	OutcomeCarrierError = "carrier_error"
	OutcomeLabelMissing = "label_missing"
)

// CreateShipment runs one kiosk shipment: estimate, create with the carrier,
// fetch the label, persist, then invoice and notify in the background.
//
// It fails only when the request is invalid or the store write fails.
// Carrier failures produce an ERROR-<ms> shipment, a missing label leaves
// the label empty, and invoice or mail failures are logged. Cancelling ctx
// does not stop a run that has started.
func (o *Orchestrator) CreateShipment(ctx context.Context, req *shipment.Request) (*shipment.Shipment, error) {
	ctx = context.WithoutCancel(ctx)

	s, err := shipment.New(req, o.now())
	if err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.CreateShipment",
		trace.WithAttributes(
			attribute.String("shipment.id", s.ID),
			attribute.String("billing.type", string(s.Billing.Type)),
		))
	defer span.End()

	logger := o.logger.Ctx(ctx)
	id := zap.String("shipment_id", s.ID)

	cost, _ := o.estimate(ctx, s.Destination, s.Package, s.Billing.Account, false)
	s.EstimatedCost = &cost

	outcome := OutcomeCreated
	created, err := o.createWithCarrier(ctx, s)
	if err != nil {
		s.TrackingNumber = shipment.ErrorTrackingNumber(o.now())
		s.CarrierResponse = err.Error()
		if raw := shipper.RawResponse(err); raw != "" {
			s.CarrierResponse = err.Error() + "\n" + raw
		}
		outcome = OutcomeCarrierError
		logger.Error("Carrier shipment failed, recording error shipment",
			id,
			zap.String("tracking_number", s.TrackingNumber),
			zap.Error(err),
		)
	} else {
		s.TrackingNumber = created.TrackingNumber
		s.CarrierResponse = created.RawResponse
		span.SetAttributes(attribute.String("shipment.tracking_number", s.TrackingNumber))

		label, err := o.documents(ctx, s.TrackingNumber)
		if err != nil {
			outcome = OutcomeLabelMissing
			logger.Warn("Label retrieval failed, shipment kept without label",
				id,
				zap.String("tracking_number", s.TrackingNumber),
				zap.Error(err),
			)
		} else {
			s.Label = label.Data
		}
	}

	if err := o.store.InsertShipment(ctx, s); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Failed to persist shipment",
			id,
			zap.String("tracking_number", s.TrackingNumber),
			zap.Error(err),
		)
		return nil, fmt.Errorf("persisting shipment: %w", err)
	}
	o.recordShipment(outcome)

	logger.Info("Shipment recorded",
		id,
		zap.String("tracking_number", s.TrackingNumber),
		zap.Float64("estimated_cost", cost),
		zap.String("outcome", outcome),
	)

	persisted := *s
	o.spawn(ctx, func(ctx context.Context) { o.afterPersist(ctx, &persisted) })

	return s, nil
}

// createWithCarrier validates the shipment unless validation is skipped,
// then creates it. A validation failure is returned as is, so the error
// shipment keeps the carrier's field errors.
func (o *Orchestrator) createWithCarrier(ctx context.Context, s *shipment.Shipment) (*shipper.CreatedShipment, error) {
	req := &shipper.ShipmentRequest{
		Reference:       s.ID,
		Sender:          o.config.Sender,
		Receiver:        s.Destination,
		Package:         s.Package,
		BillingAccount:  s.Billing.Account,
		SenderTaxNumber: o.config.CSCAccount,
		PrinterType:     purolator.PrinterTypeThermal,
	}

	if !o.config.SkipValidation {
		start := time.Now()
		err := o.carrier.ValidateShipment(ctx, req)
		o.observe("validateShipment", start, err)
		if err != nil {
			return nil, err
		}
	}

	start := time.Now()
	created, err := o.carrier.CreateShipment(ctx, req)
	o.observe("createShipment", start, err)
	return created, err
}

func (o *Orchestrator) documents(ctx context.Context, pin string) (*shipper.Label, error) {
	start := time.Now()
	label, err := o.carrier.GetDocuments(ctx, pin)
	o.observe("getDocuments", start, err)
	return label, err
}

// afterPersist runs the side effects of a persisted shipment. The invoice
// goes first so the lifecycle event carries it.
func (o *Orchestrator) afterPersist(ctx context.Context, s *shipment.Shipment) {
	logger := o.logger.Ctx(ctx)
	id := zap.String("shipment_id", s.ID)

	switch {
	case s.Invoiceable() && o.invoicer != nil:
		_ = o.invoice(ctx, s)
	case s.Billing.Type == shipment.BillingCSC && !s.HasCarrierShipment():
		logger.Info("Skipping invoice for failed carrier shipment",
			id, zap.String("tracking_number", s.TrackingNumber))
	}

	if o.notifier != nil {
		if err := o.notifier.ShipmentCreated(ctx, s); err != nil {
			logger.Warn("Shipment notifications failed", id, zap.Error(err))
		}
	}
	if err := o.publisher.ShipmentCreated(ctx, s); err != nil {
		logger.Warn("Failed to publish shipment event", id, zap.Error(err))
	}
}

// invoice bills s and records the invoice on the stored shipment. Failures
// are logged and returned.
func (o *Orchestrator) invoice(ctx context.Context, s *shipment.Shipment) error {
	logger := o.logger.Ctx(ctx)
	fields := []zap.Field{
		zap.String("shipment_id", s.ID),
		zap.String("tracking_number", s.TrackingNumber),
	}

	inv, err := o.invoicer.CreateInvoiceForShipment(ctx, &invoice.ShipmentInvoiceRequest{
		ShipmentID:     s.ID,
		TrackingNumber: s.TrackingNumber,
		TrackingURL:    purolator.TrackingURL(s.TrackingNumber, s.CreatedAt),
		Contact: invoice.Contact{
			Name:  s.Recipient.Name,
			Email: s.Recipient.Email,
			Phone: s.Recipient.PhoneString(),
		},
		Organization:       s.Recipient.Organization,
		Amount:             s.Cost(),
		DestinationSummary: s.DestinationSummary(),
	})
	if err != nil {
		o.recordInvoice("failed")
		logger.Error("Failed to create invoice", append(fields, zap.Error(err))...)
		return err
	}
	o.recordInvoice("created")

	ref := shipment.InvoiceRef{ID: inv.ID, HostedURL: inv.HostedURL, PDFURL: inv.PDFURL}
	pending := shipment.PaymentPending
	if err := o.store.UpdateShipmentFields(ctx, s.ID, store.Update{
		Invoice:              &ref,
		InitialPaymentStatus: &pending,
	}); err != nil {
		logger.Error("Failed to record invoice on shipment",
			append(fields, zap.String("invoice_id", inv.ID), zap.Error(err))...)
		return err
	}

	s.Invoice = &ref
	if s.PaymentStatus == shipment.PaymentNone {
		s.PaymentStatus = pending
	}
	logger.Info("Invoice created", append(fields, zap.String("invoice_id", inv.ID))...)
	return nil
}
