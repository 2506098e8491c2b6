// Package orchestrator drives a kiosk shipment across the carrier, the
// store, the payment provider and the mailer, degrading when any external
// call other than the store write fails.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tournevent/kiosk/internal/events"
	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/internal/store"
	"github.com/tournevent/kiosk/internal/telemetry"
	"github.com/tournevent/kiosk/pkg/invoice"
	"github.com/tournevent/kiosk/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Invoicer re-bills CSC shipments.
type Invoicer interface {
	CreateInvoiceForShipment(ctx context.Context, req *invoice.ShipmentInvoiceRequest) (*invoice.Invoice, error)
	SendReminder(ctx context.Context, invoiceID string) (*invoice.Invoice, error)
	VoidInvoice(ctx context.Context, invoiceID string) (*invoice.Invoice, error)
}

// Notifier sends the mails for a persisted shipment.
type Notifier interface {
	ShipmentCreated(ctx context.Context, s *shipment.Shipment) error
}

// Config is the station configuration shared by every orchestration.
type Config struct {
	// Sender is the station address parcels ship from and pickups happen at.
	Sender shipper.Address

	// CSCAccount is the station's own billing account. It is also sent as
	// the sender tax number on every shipment.
	CSCAccount string

	// SkipValidation creates shipments without validating them first.
	SkipValidation bool

	// Box is the standard parcel, used for estimates without dimensions.
	Box shipper.Package

	PickupLocation     string
	PickupInstructions string
	PickupLoadingDock  bool
}

// Deps are the collaborators of an Orchestrator. Notifier, Publisher,
// Metrics and Tracer are optional.
type Deps struct {
	Carrier   shipper.Carrier
	Invoicer  Invoicer
	Store     store.Store
	Notifier  Notifier
	Publisher events.Publisher
	Logger    *otelzap.Logger
	Metrics   *telemetry.Metrics
	Tracer    trace.Tracer
}

// Orchestrator runs shipment flows. It holds no per-request state; every
// invocation owns its Shipment value until it is persisted.
type Orchestrator struct {
	config    Config
	carrier   shipper.Carrier
	invoicer  Invoicer
	store     store.Store
	notifier  Notifier
	publisher events.Publisher
	logger    *otelzap.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	now       func() time.Time

	background sync.WaitGroup
}

// Errors returned by orchestrator operations.
var (
	// ErrNoCarrierShipment indicates the shipment only has an ERROR sentinel.
	ErrNoCarrierShipment = errors.New("shipment was not created with the carrier")

	// ErrNoInvoice indicates the shipment has no invoice to act on.
	ErrNoInvoice = errors.New("shipment has no invoice")

	// ErrNotInvoiceable indicates a shipment the recipient is not re-billed for.
	ErrNotInvoiceable = errors.New("shipment is not invoiceable")

	// ErrAlreadyInvoiced indicates a shipment that already has an invoice.
	ErrAlreadyInvoiced = errors.New("shipment already has an invoice")
)

// New creates an orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	o := &Orchestrator{
		config:    cfg,
		carrier:   deps.Carrier,
		invoicer:  deps.Invoicer,
		store:     deps.Store,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		now:       time.Now,
	}
	if o.publisher == nil {
		o.publisher = events.NoopPublisher{}
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("orchestrator")
	}
	return o
}

// Wait blocks until every side effect spawned by earlier calls has
// finished. The server calls it during shutdown.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// GetShipment loads a stored shipment.
func (o *Orchestrator) GetShipment(ctx context.Context, id string) (*shipment.Shipment, error) {
	return o.store.GetShipmentByID(ctx, id)
}

// ListShipments returns the most recent shipments first.
func (o *Orchestrator) ListShipments(ctx context.Context, limit int) ([]*shipment.Shipment, error) {
	return o.store.ListShipments(ctx, limit)
}

// spawn runs fn detached from the caller's cancellation.
func (o *Orchestrator) spawn(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		fn(ctx)
	}()
}

func (o *Orchestrator) observe(operation string, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		o.metrics.RecordError(o.carrier.Name(), errorType(err))
	}
	o.metrics.RecordRequest(operation, o.carrier.Name(), status, time.Since(start).Seconds())
}

func (o *Orchestrator) recordShipment(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordShipment(outcome)
	}
}

func (o *Orchestrator) recordInvoice(status string) {
	if o.metrics != nil {
		o.metrics.RecordInvoice(status)
	}
}

func errorType(err error) string {
	var shipperErr *shipper.ShipperError
	if errors.As(err, &shipperErr) && shipperErr.Kind != "" {
		return string(shipperErr.Kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(shipper.KindNetwork)
	}
	return "unknown"
}
