package purolator

import (
	"context"
)

// APIClient defines the Purolator web-service operations the kiosk uses.
// SOAPAPIClient talks to the carrier; MockAPIClient serves tests and demos.
type APIClient interface {
	// GetQuickEstimate prices a parcel from a postal code to an address (EstimatingService v2).
	GetQuickEstimate(ctx context.Context, req *QuickEstimateRequest) (*EstimateResponse, error)

	// GetFullEstimate prices a fully described shipment (EstimatingService v2).
	GetFullEstimate(ctx context.Context, req *FullEstimateRequest) (*EstimateResponse, error)

	// ValidateShipment dry-runs a shipment request (ShippingService v2).
	ValidateShipment(ctx context.Context, req *ShipmentRequest) (*ValidateResponse, error)

	// CreateShipment creates a shipment (ShippingService v2).
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// GetDocuments retrieves shipping documents (ShippingDocumentsService v1).
	GetDocuments(ctx context.Context, req *DocumentsRequest) (*DocumentsResponse, error)

	// TrackPackagesByPin retrieves scan history (TrackingService v2).
	TrackPackagesByPin(ctx context.Context, pin string) (*TrackingResponse, error)

	// ValidatePickUp checks a pickup request against business rules (PickUpService v1).
	ValidatePickUp(ctx context.Context, req *PickupRequest) (*ValidatePickupResponse, error)

	// SchedulePickUp books a pickup (PickUpService v1).
	SchedulePickUp(ctx context.Context, req *PickupRequest) (*PickupResponse, error)
}

// ============================================================================
// API Request/Response Types (match Purolator SOAP API structure)
// ============================================================================

// Service and document identifiers used on the wire.
const (
	ServicePurolatorGround = "PurolatorGround"
	DocumentBillOfLading   = "DomesticBillOfLading"
	PackageTypeCustomer    = "CustomerPackaging"
	PickupTypePreScheduled = "PreScheduled"
	PickupTypeDropOff      = "DropOff"
	PrinterTypeThermal     = "Thermal"
	PaymentTypeSender      = "Sender"
	DefaultDescription     = "Package"
)

// ReceiverTaxNumber is the placeholder sent for domestic receivers, who
// have no tax number on file.
const ReceiverTaxNumber = "123456"


// Address is a Purolator address block.
type Address struct {
	Name         string
	Company      string
	StreetNumber string
	StreetName   string
	City         string
	Province     string
	Country      string
	PostalCode   string
	PhoneNumber  PhoneNumber
	Email        string
}

// PhoneNumber is a Purolator phone number block.
type PhoneNumber struct {
	CountryCode string
	AreaCode    string
	Phone       string
}

// Weight represents package weight.
type Weight struct {
	Value float64
	Unit  string // "lb" or "kg"
}

// Piece represents a single package piece. Dimensions are inches.
type Piece struct {
	Weight Weight
	Length float64
	Width  float64
	Height float64
}

// PackageInformation contains package details for rating and shipping.
type PackageInformation struct {
	ServiceID   string
	Description string
	TotalWeight Weight
	TotalPieces int
	Pieces      []Piece
}

// QuickEstimateRequest is a GetQuickEstimate request.
type QuickEstimateRequest struct {
	BillingAccountNumber string
	SenderPostalCode     string
	ReceiverAddress      Address
	PackageType          string
	TotalWeight          Weight
}

// FullEstimateRequest is a GetFullEstimate request.
type FullEstimateRequest struct {
	Sender                  Address
	Receiver                Address
	Package                 PackageInformation
	BillingAccountNumber    string
	RegisteredAccountNumber string
	ShowAlternativeServices bool
}

// ShipmentEstimate is one priced service.
type ShipmentEstimate struct {
	ServiceID            string
	BasePrice            float64
	TotalPrice           float64
	ExpectedDeliveryDate string
	EstimatedTransitDays int
}

// EstimateResponse is the result of either estimate call.
type EstimateResponse struct {
	Estimates []ShipmentEstimate
}

// ShipmentRequest is a ValidateShipment or CreateShipment request.
type ShipmentRequest struct {
	Sender                  Address
	SenderTaxNumber         string
	Receiver                Address
	ReceiverTaxNumber       string
	Package                 PackageInformation
	BillingAccountNumber    string
	RegisteredAccountNumber string
	PickupType              string
	Reference1              string
	PrinterType             string
}

// ValidateResponse is the result of ValidateShipment.
type ValidateResponse struct {
	Valid bool
}

// ShipmentResponse is the result of CreateShipment.
type ShipmentResponse struct {
	ShipmentPIN string
	PiecePINs   []string
	RawResponse string
}

// TrackingNumber returns the shipment PIN, or the first piece PIN when the
// response carried no ShipmentPIN element.
func (r *ShipmentResponse) TrackingNumber() string {
	if r.ShipmentPIN != "" {
		return r.ShipmentPIN
	}
	if len(r.PiecePINs) > 0 {
		return r.PiecePINs[0]
	}
	return ""
}

// DocumentsRequest is a GetDocuments request.
type DocumentsRequest struct {
	PIN          string
	DocumentType string
}

// DocumentsResponse carries the base64 document blob.
type DocumentsResponse struct {
	PIN  string
	Data string
}

// TrackingResponse contains the scans for one PIN.
type TrackingResponse struct {
	PIN   string
	Scans []Scan
}

// Scan represents a single tracking scan.
type Scan struct {
	Type        string
	Date        string // YYYY-MM-DD
	Time        string // HHMMSS
	Description string
	Location    string
}

// PickupRequest is a ValidatePickUp or SchedulePickUp request.
type PickupRequest struct {
	BillingAccountNumber   string
	Date                   string
	AnyTimeAfter           string
	UntilTime              string
	TotalWeight            Weight
	TotalPieces            int
	PickUpLocation         string
	AdditionalInstructions string
	LoadingDockAvailable   bool
	TrailerAccessible      bool
	ShipmentOnSkids        bool
	Address                Address
}

// ValidatePickupResponse is the result of ValidatePickUp.
type ValidatePickupResponse struct {
	Valid bool
}

// PickupResponse is the result of SchedulePickUp.
type PickupResponse struct {
	ConfirmationNumber string
}
