package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/pkg/shipper"
	"go.uber.org/zap"
)

// TrackShipment returns the carrier's scan history for a tracking number.
func (o *Orchestrator) TrackShipment(ctx context.Context, trackingNumber string) (*shipper.TrackingResult, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, &shipment.ValidationError{Fields: map[string]string{"TrackingNumber": "is required"}}
	}
	if shipment.IsErrorTracking(trackingNumber) {
		return nil, ErrNoCarrierShipment
	}

	start := time.Now()
	result, err := o.carrier.TrackByPin(ctx, trackingNumber)
	o.observe("trackByPin", start, err)
	if err != nil {
		return nil, fmt.Errorf("tracking %s: %w", trackingNumber, err)
	}
	return result, nil
}

// PickupInput is the operator's pickup reservation for the whole
// conference. Empty optional fields take the station defaults.
type PickupInput struct {
	Date           string  `validate:"required,datetime=2006-01-02"`
	ReadyTime      string  `validate:"required,datetime=15:04"`
	CloseTime      string  `validate:"required,datetime=15:04"`
	TotalWeight    float64 `validate:"gt=0"`
	TotalPieces    int     `validate:"gt=0"`
	BillingAccount string  `validate:"omitempty,len=8,number"`
	Location       string  `validate:"max=100"`
	Instructions   string  `validate:"max=200"`
	LoadingDock    *bool
	ValidateOnly   bool
}

// PickupResult reports a validated or scheduled pickup.
type PickupResult struct {
	Validated          bool
	ConfirmationNumber string
}

// ErrPickupWindow indicates a close time not after the ready time.
var ErrPickupWindow = errors.New("pickup close time must be after ready time")

// SchedulePickup validates the pickup with the carrier and, unless only a
// validation was requested, schedules it at the station address.
func (o *Orchestrator) SchedulePickup(ctx context.Context, in *PickupInput) (*PickupResult, error) {
	if err := shipment.ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.CloseTime <= in.ReadyTime {
		return nil, &shipment.ValidationError{Fields: map[string]string{"CloseTime": ErrPickupWindow.Error()}}
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.SchedulePickup")
	defer span.End()

	req := o.pickupRequest(in)
	logger := o.logger.Ctx(ctx)

	start := time.Now()
	err := o.carrier.ValidatePickup(ctx, req)
	o.observe("validatePickup", start, err)
	if err != nil {
		logger.Error("Pickup validation failed", zap.String("date", req.Date), zap.Error(err))
		return nil, fmt.Errorf("validating pickup: %w", err)
	}
	if in.ValidateOnly {
		return &PickupResult{Validated: true}, nil
	}

	start = time.Now()
	conf, err := o.carrier.SchedulePickup(ctx, req)
	o.observe("schedulePickup", start, err)
	if err != nil {
		logger.Error("Pickup scheduling failed", zap.String("date", req.Date), zap.Error(err))
		return nil, fmt.Errorf("scheduling pickup: %w", err)
	}

	logger.Info("Pickup scheduled",
		zap.String("date", req.Date),
		zap.String("confirmation", conf.ConfirmationNumber),
		zap.Int("pieces", req.TotalPieces),
	)
	return &PickupResult{Validated: true, ConfirmationNumber: conf.ConfirmationNumber}, nil
}

func (o *Orchestrator) pickupRequest(in *PickupInput) *shipper.PickupRequest {
	account := in.BillingAccount
	if account == "" {
		account = o.config.CSCAccount
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = o.config.PickupLocation
	}
	instructions := strings.TrimSpace(in.Instructions)
	if instructions == "" {
		instructions = o.config.PickupInstructions
	}
	dock := o.config.PickupLoadingDock
	if in.LoadingDock != nil {
		dock = *in.LoadingDock
	}

	return &shipper.PickupRequest{
		BillingAccount: account,
		Date:           in.Date,
		ReadyTime:      in.ReadyTime,
		CloseTime:      in.CloseTime,
		TotalWeight:    in.TotalWeight,
		TotalPieces:    in.TotalPieces,
		Location:       location,
		Instructions:   instructions,
		LoadingDock:    dock,
		Address:        o.config.Sender,
	}
}
