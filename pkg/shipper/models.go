package shipper

import "time"

// WeightUnit represents weight measurement unit.
type WeightUnit string

const (
	WeightKG WeightUnit = "kg"
	WeightLB WeightUnit = "lb"
)

// DimensionUnit represents dimension measurement unit.
type DimensionUnit string

const (
	DimensionCM DimensionUnit = "cm"
	DimensionIN DimensionUnit = "in"
)

// DefaultCountry is the only destination country the kiosk ships to.
const DefaultCountry = "CA"

// Phone is a North American phone number split the way carriers expect it.
type Phone struct {
	CountryCode string
	AreaCode    string
	Number      string
}

// Address represents a shipping address with the street already split
// into number and name.
type Address struct {
	Name         string
	Company      string
	StreetNumber string
	StreetName   string
	City         string
	Province     string // two-letter code, e.g. "ON"
	PostalCode   string // no spaces, uppercase
	Country      string
	Phone        Phone
	Email        string
}

// Package describes a single parcel. Dimensions are inches, weight is pounds.
type Package struct {
	Length float64
	Width  float64
	Height float64
	Weight float64
}

// RateOption is one priced service returned by an estimate.
type RateOption struct {
	ServiceID            string
	TotalPrice           float64
	BasePrice            float64
	ExpectedDeliveryDate string
	EstimatedTransitDays int
}

// EstimateRequest asks a carrier to price a parcel.
type EstimateRequest struct {
	Origin         Address
	Destination    Address
	Package        Package
	BillingAccount string
}

// ShipmentRequest is everything needed to create or validate a shipment.
type ShipmentRequest struct {
	Reference       string
	Sender          Address
	Receiver        Address
	Package         Package
	Description     string
	BillingAccount  string
	SenderTaxNumber string
	PrinterType     string
}

// CreatedShipment is the carrier's answer to a successful create call.
type CreatedShipment struct {
	ShipmentPIN    string
	PiecePINs      []string
	TrackingNumber string
	RawResponse    string
}

// Label is a retrieved shipping document.
type Label struct {
	PIN          string
	DocumentType string
	Data         string // base64 PDF
}

// TrackingEvent represents a single scan in a tracking history.
type TrackingEvent struct {
	Timestamp   time.Time
	Description string
	Location    string
	Type        string
}

// TrackingResult is the tracking detail for one PIN.
type TrackingResult struct {
	PIN    string
	Events []TrackingEvent
}

// PickupRequest reserves a carrier pickup at a fixed location.
type PickupRequest struct {
	BillingAccount    string
	Date              string // YYYY-MM-DD
	ReadyTime         string // HH:MM, 24h
	CloseTime         string // HH:MM, 24h
	TotalWeight       float64
	TotalPieces       int
	Location          string
	Instructions      string
	LoadingDock       bool
	TrailerAccessible bool
	ShipmentOnSkids   bool
	Address           Address
}

// PickupConfirmation is returned by a successful schedule call.
type PickupConfirmation struct {
	ConfirmationNumber string
}
