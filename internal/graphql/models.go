package graphql

import "time"

// BillingType is the GraphQL billing enum.
type BillingType string

const (
	BillingTypeCSC         BillingType = "CSC"
	BillingTypeInstitution BillingType = "INSTITUTION"
)

// PaymentStatus is the GraphQL payment status enum.
type PaymentStatus string

const (
	PaymentStatusNone          PaymentStatus = "NONE"
	PaymentStatusPending       PaymentStatus = "PENDING"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusPaymentFailed PaymentStatus = "PAYMENT_FAILED"
	PaymentStatusVoided        PaymentStatus = "VOIDED"
	PaymentStatusUncollectible PaymentStatus = "UNCOLLECTIBLE"
)

// ShipmentStatus is the GraphQL shipment lifecycle enum.
type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "PENDING"
	ShipmentStatusPrinted   ShipmentStatus = "PRINTED"
	ShipmentStatusPickedUp  ShipmentStatus = "PICKED_UP"
	ShipmentStatusDelivered ShipmentStatus = "DELIVERED"
)

type RecipientInput struct {
	Name         string  `json:"name"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Organization *string `json:"organization,omitempty"`
}

type AddressInput struct {
	Street     string  `json:"street"`
	City       string  `json:"city"`
	Province   string  `json:"province"`
	PostalCode string  `json:"postalCode"`
	Country    *string `json:"country,omitempty"`
}

type PackageInput struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

type BillingInput struct {
	Type    BillingType `json:"type"`
	Account string      `json:"account"`
}

type CreateShipmentInput struct {
	Recipient *RecipientInput `json:"recipient"`
	Address   *AddressInput   `json:"address"`
	Package   *PackageInput   `json:"package"`
	Billing   *BillingInput   `json:"billing"`
}

type EstimateInput struct {
	City               string   `json:"city"`
	Province           string   `json:"province"`
	PostalCode         string   `json:"postalCode"`
	Weight             float64  `json:"weight"`
	Length             *float64 `json:"length,omitempty"`
	Width              *float64 `json:"width,omitempty"`
	Height             *float64 `json:"height,omitempty"`
	InstitutionAccount *string  `json:"institutionAccount,omitempty"`
}

type PickupInput struct {
	Date           string  `json:"date"`
	ReadyTime      string  `json:"readyTime"`
	CloseTime      string  `json:"closeTime"`
	TotalWeight    float64 `json:"totalWeight"`
	TotalPieces    int     `json:"totalPieces"`
	BillingAccount *string `json:"billingAccount,omitempty"`
	Location       *string `json:"location,omitempty"`
	Instructions   *string `json:"instructions,omitempty"`
	LoadingDock    *bool   `json:"loadingDock,omitempty"`
	ValidateOnly   *bool   `json:"validateOnly,omitempty"`
}

type Recipient struct {
	Name         string  `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Organization *string `json:"organization"`
}

type Address struct {
	Name         *string `json:"name"`
	Company      *string `json:"company"`
	StreetNumber string  `json:"streetNumber"`
	StreetName   string  `json:"streetName"`
	City         string  `json:"city"`
	Province     string  `json:"province"`
	PostalCode   string  `json:"postalCode"`
	Country      string  `json:"country"`
}

type Package struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

type Billing struct {
	Type    BillingType `json:"type"`
	Account string      `json:"account"`
}

type Invoice struct {
	ID        string  `json:"id"`
	HostedURL *string `json:"hostedUrl"`
	PDFURL    *string `json:"pdfUrl"`
}

type Shipment struct {
	ID             string         `json:"id"`
	TrackingNumber string         `json:"trackingNumber"`
	TrackingURL    *string        `json:"trackingUrl"`
	Recipient      *Recipient     `json:"recipient"`
	Destination    *Address       `json:"destination"`
	Package        *Package       `json:"package"`
	Billing        *Billing       `json:"billing"`
	EstimatedCost  *float64       `json:"estimatedCost"`
	LabelAvailable bool           `json:"labelAvailable"`
	Label          *string        `json:"label"`
	Invoice        *Invoice       `json:"invoice"`
	PaymentStatus  PaymentStatus  `json:"paymentStatus"`
	Status         ShipmentStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	PaidAt         *time.Time     `json:"paidAt"`
}

type Error struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Field   *string `json:"field"`
}

type CreateShipmentPayload struct {
	Success  bool      `json:"success"`
	Shipment *Shipment `json:"shipment"`
	Errors   []*Error  `json:"errors"`
}

type Estimate struct {
	Account  string  `json:"account"`
	Amount   float64 `json:"amount"`
	Fallback bool    `json:"fallback"`
}

type Estimates struct {
	CSC         *Estimate `json:"csc"`
	Institution *Estimate `json:"institution"`
}

type TrackingEvent struct {
	Timestamp   *time.Time `json:"timestamp"`
	Description string     `json:"description"`
	Location    *string    `json:"location"`
	Type        *string    `json:"type"`
}

type Tracking struct {
	Pin         string           `json:"pin"`
	TrackingURL string           `json:"trackingUrl"`
	Events      []*TrackingEvent `json:"events"`
}

type PickupPayload struct {
	Validated          bool    `json:"validated"`
	ConfirmationNumber *string `json:"confirmationNumber"`
}
