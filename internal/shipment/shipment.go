// Package shipment holds the kiosk's shipment aggregate.
package shipment

import (
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/kiosk/pkg/shipper"
)

// BillingType selects who pays the carrier.
type BillingType string

const (
	// BillingCSC charges the kiosk operator's account and re-invoices the recipient.
	BillingCSC BillingType = "csc"
	// BillingInstitution charges the recipient organization's own account.
	BillingInstitution BillingType = "institution"
)

// PaymentStatus tracks the recipient invoice.
type PaymentStatus string

const (
	PaymentNone          PaymentStatus = "none"
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentFailed        PaymentStatus = "payment_failed"
	PaymentVoided        PaymentStatus = "voided"
	PaymentUncollectible PaymentStatus = "uncollectible"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentNone, PaymentPending, PaymentPaid, PaymentFailed, PaymentVoided, PaymentUncollectible:
		return true
	}
	return false
}

// Status is the physical shipment lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPrinted   Status = "printed"
	StatusPickedUp  Status = "picked_up"
	StatusDelivered Status = "delivered"
)

// ErrorTrackingPrefix marks shipments the carrier never created.
const ErrorTrackingPrefix = "ERROR-"

// Recipient is the attendee the parcel is addressed to.
type Recipient struct {
	Name         string
	Email        string
	Phone        shipper.Phone
	Organization string
}

// Billing identifies the carrier account charged for the shipment.
type Billing struct {
	Type    BillingType
	Account string
}

// InvoiceRef is the local mirror of the provider-side invoice.
type InvoiceRef struct {
	ID        string
	HostedURL string
	PDFURL    string
}

// Shipment is a single kiosk parcel.
type Shipment struct {
	ID             string
	TrackingNumber string
	Recipient      Recipient
	Destination    shipper.Address
	Package        shipper.Package
	Billing        Billing

	EstimatedCost *float64

	// Label is the base64 PDF bill of lading. Empty when the carrier
	// failed or the document could not be fetched.
	Label           string
	CarrierResponse string

	Invoice       *InvoiceRef
	PaymentStatus PaymentStatus
	Status        Status

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time

	// PaymentEventAt is the creation time of the last applied payment event.
	PaymentEventAt *time.Time
}

// IsErrorTracking reports whether a tracking number is a carrier-failure sentinel.
func IsErrorTracking(trackingNumber string) bool {
	return strings.HasPrefix(trackingNumber, ErrorTrackingPrefix)
}

// ErrorTrackingNumber builds the sentinel used when shipment creation fails.
func ErrorTrackingNumber(now time.Time) string {
	return ErrorTrackingPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// HasCarrierShipment reports whether the carrier created this shipment.
func (s *Shipment) HasCarrierShipment() bool {
	return s.TrackingNumber != "" && !IsErrorTracking(s.TrackingNumber)
}

// Cost returns the estimated cost, or zero when unknown.
func (s *Shipment) Cost() float64 {
	if s.EstimatedCost == nil {
		return 0
	}
	return *s.EstimatedCost
}

// Invoiceable reports whether the recipient should be re-billed: CSC
// billing, a positive cost, and a shipment the carrier actually created.
func (s *Shipment) Invoiceable() bool {
	return s.Billing.Type == BillingCSC && s.Cost() > 0 && s.HasCarrierShipment()
}

// DestinationSummary renders "City, PR A1A1A1" for invoices and mails.
func (s *Shipment) DestinationSummary() string {
	parts := make([]string, 0, 2)
	if s.Destination.City != "" {
		parts = append(parts, s.Destination.City)
	}
	region := strings.TrimSpace(s.Destination.Province + " " + s.Destination.PostalCode)
	if region != "" {
		parts = append(parts, region)
	}
	return strings.Join(parts, ", ")
}

// PhoneString renders the recipient phone as ten digits, or empty when the
// phone is the placeholder.
func (r Recipient) PhoneString() string {
	if r.Phone.AreaCode == "" || r.Phone.AreaCode == "000" {
		return ""
	}
	return r.Phone.AreaCode + r.Phone.Number
}
