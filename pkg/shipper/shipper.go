// Package shipper provides the carrier abstraction the kiosk ships through.
package shipper

import (
	"context"
)

// Carrier defines the operations a shipping carrier must implement.
type Carrier interface {
	// Name returns the carrier identifier (e.g., "purolator").
	Name() string

	// QuickEstimate returns the Ground price for one parcel.
	QuickEstimate(ctx context.Context, req *EstimateRequest) (float64, error)

	// FullEstimate prices a fully dimensioned parcel and returns every
	// service the carrier offered.
	FullEstimate(ctx context.Context, req *EstimateRequest) ([]RateOption, error)

	// ValidateShipment checks a shipment without creating it.
	ValidateShipment(ctx context.Context, req *ShipmentRequest) error

	// CreateShipment creates a new shipment with the carrier.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*CreatedShipment, error)

	// GetDocuments retrieves the shipping label for a PIN.
	GetDocuments(ctx context.Context, pin string) (*Label, error)

	// TrackByPin returns the scan history for a PIN.
	TrackByPin(ctx context.Context, pin string) (*TrackingResult, error)

	// ValidatePickup checks a pickup request without booking it.
	ValidatePickup(ctx context.Context, req *PickupRequest) error

	// SchedulePickup books a pickup.
	SchedulePickup(ctx context.Context, req *PickupRequest) (*PickupConfirmation, error)
}
