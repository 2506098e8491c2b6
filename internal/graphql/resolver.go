package graphql

import (
	"context"
	"errors"

	"github.com/tournevent/kiosk/internal/orchestrator"
	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/internal/store"
	"github.com/tournevent/kiosk/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultShipmentsLimit caps the shipments query when no limit is given.
const DefaultShipmentsLimit = 50

// Service is the orchestration surface the API exposes.
type Service interface {
	CreateShipment(ctx context.Context, req *shipment.Request) (*shipment.Shipment, error)
	GetEstimates(ctx context.Context, in *orchestrator.EstimateInput) (*orchestrator.Estimates, error)
	GetShipment(ctx context.Context, id string) (*shipment.Shipment, error)
	ListShipments(ctx context.Context, limit int) ([]*shipment.Shipment, error)
	TrackShipment(ctx context.Context, trackingNumber string) (*shipper.TrackingResult, error)
	SchedulePickup(ctx context.Context, in *orchestrator.PickupInput) (*orchestrator.PickupResult, error)
	SendInvoiceReminder(ctx context.Context, shipmentID string) (*shipment.Shipment, error)
	VoidInvoice(ctx context.Context, shipmentID string) (*shipment.Shipment, error)
	CreateInvoice(ctx context.Context, shipmentID string) (*shipment.Shipment, error)
}

// QueryResolver resolves the Query root fields.
type QueryResolver interface {
	Health(ctx context.Context) (bool, error)
	Shipment(ctx context.Context, id string, includeLabel *bool) (*Shipment, error)
	Shipments(ctx context.Context, limit *int) ([]*Shipment, error)
	Estimates(ctx context.Context, input EstimateInput) (*Estimates, error)
	TrackShipment(ctx context.Context, trackingNumber string) (*Tracking, error)
}

// MutationResolver resolves the Mutation root fields.
type MutationResolver interface {
	CreateShipment(ctx context.Context, input CreateShipmentInput) (*CreateShipmentPayload, error)
	SchedulePickup(ctx context.Context, input PickupInput) (*PickupPayload, error)
	SendInvoiceReminder(ctx context.Context, shipmentID string) (*Shipment, error)
	VoidInvoice(ctx context.Context, shipmentID string) (*Shipment, error)
	CreateInvoice(ctx context.Context, shipmentID string) (*Shipment, error)
}

// Resolver is the root resolver for the GraphQL schema.
// It holds dependencies needed by all resolvers.
type Resolver struct {
	Service Service
	Logger  *otelzap.Logger
}

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(service Service, logger *otelzap.Logger) *Resolver {
	return &Resolver{
		Service: service,
		Logger:  logger,
	}
}

// Query returns the Query root resolver.
func (r *Resolver) Query() QueryResolver { return &queryResolver{r} }

// Mutation returns the Mutation root resolver.
func (r *Resolver) Mutation() MutationResolver { return &mutationResolver{r} }

type queryResolver struct{ *Resolver }

func (r *queryResolver) Health(ctx context.Context) (bool, error) {
	return true, nil
}

func (r *queryResolver) Shipment(ctx context.Context, id string, includeLabel *bool) (*Shipment, error) {
	s, err := r.Service.GetShipment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return shipmentToGraphQL(s, includeLabel != nil && *includeLabel), nil
}

func (r *queryResolver) Shipments(ctx context.Context, limit *int) ([]*Shipment, error) {
	n := DefaultShipmentsLimit
	if limit != nil && *limit > 0 {
		n = *limit
	}
	list, err := r.Service.ListShipments(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]*Shipment, 0, len(list))
	for _, s := range list {
		out = append(out, shipmentToGraphQL(s, false))
	}
	return out, nil
}

func (r *queryResolver) Estimates(ctx context.Context, input EstimateInput) (*Estimates, error) {
	est, err := r.Service.GetEstimates(ctx, estimateInputToModel(&input))
	if err != nil {
		return nil, err
	}
	return &Estimates{
		CSC:         estimateToGraphQL(&est.CSC),
		Institution: estimateToGraphQL(est.Institution),
	}, nil
}

func (r *queryResolver) TrackShipment(ctx context.Context, trackingNumber string) (*Tracking, error) {
	result, err := r.Service.TrackShipment(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	return trackingToGraphQL(result), nil
}

type mutationResolver struct{ *Resolver }

// CreateShipment reports invalid input in the payload. A carrier failure is
// still a recorded shipment, flagged by success=false and a CARRIER_ERROR.
func (r *mutationResolver) CreateShipment(ctx context.Context, input CreateShipmentInput) (*CreateShipmentPayload, error) {
	s, err := r.Service.CreateShipment(ctx, createInputToRequest(&input))
	if err != nil {
		var verr *shipment.ValidationError
		if errors.As(err, &verr) {
			return &CreateShipmentPayload{Errors: validationErrorsToGraphQL(verr)}, nil
		}
		r.Logger.Ctx(ctx).Error("createShipment failed", zap.Error(err))
		return nil, err
	}

	payload := &CreateShipmentPayload{
		Success:  s.HasCarrierShipment(),
		Shipment: shipmentToGraphQL(s, true),
		Errors:   []*Error{},
	}
	if !payload.Success {
		payload.Errors = append(payload.Errors, &Error{
			Code:    CodeCarrier,
			Message: "The carrier did not create the shipment; it was recorded as " + s.TrackingNumber,
		})
	}
	return payload, nil
}

func (r *mutationResolver) SchedulePickup(ctx context.Context, input PickupInput) (*PickupPayload, error) {
	result, err := r.Service.SchedulePickup(ctx, pickupInputToModel(&input))
	if err != nil {
		return nil, err
	}
	return &PickupPayload{
		Validated:          result.Validated,
		ConfirmationNumber: optional(result.ConfirmationNumber),
	}, nil
}

func (r *mutationResolver) SendInvoiceReminder(ctx context.Context, shipmentID string) (*Shipment, error) {
	s, err := r.Service.SendInvoiceReminder(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return shipmentToGraphQL(s, false), nil
}

func (r *mutationResolver) VoidInvoice(ctx context.Context, shipmentID string) (*Shipment, error) {
	s, err := r.Service.VoidInvoice(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return shipmentToGraphQL(s, false), nil
}

func (r *mutationResolver) CreateInvoice(ctx context.Context, shipmentID string) (*Shipment, error) {
	s, err := r.Service.CreateInvoice(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return shipmentToGraphQL(s, false), nil
}
