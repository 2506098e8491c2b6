package graphql

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/tournevent/kiosk/internal/orchestrator"
	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/internal/store"
	"github.com/tournevent/kiosk/pkg/invoice"
	"github.com/tournevent/kiosk/pkg/shipper"
	"github.com/tournevent/kiosk/pkg/shipper/purolator"
)

// Error codes reported in GraphQL error extensions and payload errors.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeNoInvoice         = "NO_INVOICE"
	CodeNoCarrierShipment = "NO_CARRIER_SHIPMENT"
	CodeNotInvoiceable    = "NOT_INVOICEABLE"
	CodeAlreadyInvoiced   = "ALREADY_INVOICED"
	CodeCarrier           = "CARRIER_ERROR"
	CodeInvoice           = "INVOICE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

func createInputToRequest(input *CreateShipmentInput) *shipment.Request {
	req := &shipment.Request{}
	if r := input.Recipient; r != nil {
		req.Recipient = shipment.RecipientInput{
			Name:         r.Name,
			Email:        deref(r.Email),
			Phone:        deref(r.Phone),
			Organization: deref(r.Organization),
		}
	}
	if a := input.Address; a != nil {
		req.Address = shipment.AddressInput{
			Street:     a.Street,
			City:       a.City,
			Province:   a.Province,
			PostalCode: a.PostalCode,
			Country:    deref(a.Country),
		}
	}
	if p := input.Package; p != nil {
		req.Package = shipment.PackageInput{
			Length: p.Length,
			Width:  p.Width,
			Height: p.Height,
			Weight: p.Weight,
		}
	}
	if b := input.Billing; b != nil {
		req.Billing = shipment.BillingInput{
			Type:    billingTypeToModel(b.Type),
			Account: b.Account,
		}
	}
	return req
}

func estimateInputToModel(input *EstimateInput) *orchestrator.EstimateInput {
	out := &orchestrator.EstimateInput{
		City:               input.City,
		Province:           input.Province,
		PostalCode:         input.PostalCode,
		Weight:             input.Weight,
		InstitutionAccount: deref(input.InstitutionAccount),
	}
	if input.Length != nil {
		out.Length = *input.Length
	}
	if input.Width != nil {
		out.Width = *input.Width
	}
	if input.Height != nil {
		out.Height = *input.Height
	}
	return out
}

func pickupInputToModel(input *PickupInput) *orchestrator.PickupInput {
	out := &orchestrator.PickupInput{
		Date:           input.Date,
		ReadyTime:      input.ReadyTime,
		CloseTime:      input.CloseTime,
		TotalWeight:    input.TotalWeight,
		TotalPieces:    input.TotalPieces,
		BillingAccount: deref(input.BillingAccount),
		Location:       deref(input.Location),
		Instructions:   deref(input.Instructions),
		LoadingDock:    input.LoadingDock,
	}
	if input.ValidateOnly != nil {
		out.ValidateOnly = *input.ValidateOnly
	}
	return out
}

func shipmentToGraphQL(s *shipment.Shipment, includeLabel bool) *Shipment {
	if s == nil {
		return nil
	}
	out := &Shipment{
		ID:             s.ID,
		TrackingNumber: s.TrackingNumber,
		Recipient: &Recipient{
			Name:         s.Recipient.Name,
			Email:        optional(s.Recipient.Email),
			Phone:        optional(s.Recipient.PhoneString()),
			Organization: optional(s.Recipient.Organization),
		},
		Destination: addressToGraphQL(s.Destination),
		Package: &Package{
			Length: s.Package.Length,
			Width:  s.Package.Width,
			Height: s.Package.Height,
			Weight: s.Package.Weight,
		},
		Billing: &Billing{
			Type:    billingTypeToEnum(s.Billing.Type),
			Account: s.Billing.Account,
		},
		EstimatedCost:  s.EstimatedCost,
		LabelAvailable: s.Label != "",
		PaymentStatus:  paymentStatusToEnum(s.PaymentStatus),
		Status:         shipmentStatusToEnum(s.Status),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		PaidAt:         s.PaidAt,
	}
	if s.HasCarrierShipment() {
		u := purolator.TrackingURL(s.TrackingNumber, s.CreatedAt)
		out.TrackingURL = &u
	}
	if includeLabel {
		out.Label = optional(s.Label)
	}
	if s.Invoice != nil {
		out.Invoice = &Invoice{
			ID:        s.Invoice.ID,
			HostedURL: optional(s.Invoice.HostedURL),
			PDFURL:    optional(s.Invoice.PDFURL),
		}
	}
	return out
}

func addressToGraphQL(a shipper.Address) *Address {
	return &Address{
		Name:         optional(a.Name),
		Company:      optional(a.Company),
		StreetNumber: a.StreetNumber,
		StreetName:   a.StreetName,
		City:         a.City,
		Province:     a.Province,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}

func estimateToGraphQL(e *orchestrator.Estimate) *Estimate {
	if e == nil {
		return nil
	}
	return &Estimate{Account: e.Account, Amount: e.Amount, Fallback: e.Fallback}
}

func trackingToGraphQL(t *shipper.TrackingResult) *Tracking {
	out := &Tracking{
		Pin:         t.PIN,
		TrackingURL: purolator.TrackingURL(t.PIN, time.Time{}),
		Events:      make([]*TrackingEvent, 0, len(t.Events)),
	}
	for _, e := range t.Events {
		event := &TrackingEvent{
			Description: e.Description,
			Location:    optional(e.Location),
			Type:        optional(e.Type),
		}
		if !e.Timestamp.IsZero() {
			ts := e.Timestamp
			event.Timestamp = &ts
		}
		out.Events = append(out.Events, event)
	}
	return out
}

func validationErrorsToGraphQL(verr *shipment.ValidationError) []*Error {
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]*Error, 0, len(fields))
	for _, f := range fields {
		field := lowerCamelPath(f)
		out = append(out, &Error{
			Code:    CodeValidation,
			Message: field + " " + verr.Fields[f],
			Field:   &field,
		})
	}
	return out
}

// lowerCamelPath turns a Go field path such as Address.PostalCode into the
// GraphQL input path address.postalCode.
func lowerCamelPath(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToLower(p[:1]) + p[1:]
	}
	return strings.Join(parts, ".")
}

func errorCode(err error) string {
	var verr *shipment.ValidationError
	var shipperErr *shipper.ShipperError
	switch {
	case errors.As(err, &verr):
		return CodeValidation
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, orchestrator.ErrNoInvoice):
		return CodeNoInvoice
	case errors.Is(err, orchestrator.ErrNoCarrierShipment):
		return CodeNoCarrierShipment
	case errors.Is(err, orchestrator.ErrNotInvoiceable):
		return CodeNotInvoiceable
	case errors.Is(err, orchestrator.ErrAlreadyInvoiced):
		return CodeAlreadyInvoiced
	case errors.As(err, &shipperErr):
		return CodeCarrier
	case errors.As(err, new(*invoice.Error)):
		return CodeInvoice
	default:
		return CodeInternal
	}
}

func billingTypeToModel(t BillingType) shipment.BillingType {
	switch t {
	case BillingTypeCSC:
		return shipment.BillingCSC
	case BillingTypeInstitution:
		return shipment.BillingInstitution
	default:
		return shipment.BillingType(strings.ToLower(string(t)))
	}
}

func billingTypeToEnum(t shipment.BillingType) BillingType {
	switch t {
	case shipment.BillingInstitution:
		return BillingTypeInstitution
	default:
		return BillingTypeCSC
	}
}

func paymentStatusToEnum(s shipment.PaymentStatus) PaymentStatus {
	switch s {
	case shipment.PaymentPending:
		return PaymentStatusPending
	case shipment.PaymentPaid:
		return PaymentStatusPaid
	case shipment.PaymentFailed:
		return PaymentStatusPaymentFailed
	case shipment.PaymentVoided:
		return PaymentStatusVoided
	case shipment.PaymentUncollectible:
		return PaymentStatusUncollectible
	default:
		return PaymentStatusNone
	}
}

func shipmentStatusToEnum(s shipment.Status) ShipmentStatus {
	switch s {
	case shipment.StatusPrinted:
		return ShipmentStatusPrinted
	case shipment.StatusPickedUp:
		return ShipmentStatusPickedUp
	case shipment.StatusDelivered:
		return ShipmentStatusDelivered
	default:
		return ShipmentStatusPending
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
