package shipment_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kiosk/internal/shipment"
)

func validRequest() *shipment.Request {
	return &shipment.Request{
		Recipient: shipment.RecipientInput{
			Name:         "Jane Smith",
			Email:        "jane@example.com",
			Phone:        "+1 (416) 555-1234",
			Organization: "University of Toronto",
		},
		Address: shipment.AddressInput{
			Street:     "100 Queen St W",
			City:       "Toronto",
			Province:   "Ontario",
			PostalCode: "m5h 2n2",
		},
		Package: shipment.PackageInput{Length: 24, Width: 12, Height: 12, Weight: 10},
		Billing: shipment.BillingInput{Type: shipment.BillingCSC, Account: "12345678"},
	}
}

func TestNew_Normalizes(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s, err := shipment.New(validRequest(), now)
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "M5H2N2", s.Destination.PostalCode)
	assert.Equal(t, "ON", s.Destination.Province)
	assert.Equal(t, "CA", s.Destination.Country)
	assert.Equal(t, "100", s.Destination.StreetNumber)
	assert.Equal(t, "Queen St W", s.Destination.StreetName)
	assert.Equal(t, "1", s.Recipient.Phone.CountryCode)
	assert.Equal(t, "000", s.Recipient.Phone.AreaCode, "11 digits fall back to the placeholder")
	assert.Equal(t, shipment.PaymentNone, s.PaymentStatus)
	assert.Equal(t, shipment.StatusPending, s.Status)
	assert.Equal(t, now, s.CreatedAt)
}

func TestNew_DestinationCompany(t *testing.T) {
	s, err := shipment.New(validRequest(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "University of Toronto", s.Destination.Company)

	req := validRequest()
	req.Recipient.Organization = "  "
	s, err = shipment.New(req, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", s.Destination.Company)
	assert.Empty(t, s.Recipient.Organization)
}

func TestNew_TenDigitPhone(t *testing.T) {
	req := validRequest()
	req.Recipient.Phone = "416-555-1234"
	s, err := shipment.New(req, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "416", s.Recipient.Phone.AreaCode)
	assert.Equal(t, "5551234", s.Recipient.Phone.Number)
	assert.Equal(t, "4165551234", s.Recipient.PhoneString())
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *shipment.Request)
		field  string
	}{
		{"postal code shape", func(r *shipment.Request) { r.Address.PostalCode = "12345" }, "Address.PostalCode"},
		{"province", func(r *shipment.Request) { r.Address.Province = "Texas" }, "Address.Province"},
		{"zero weight", func(r *shipment.Request) { r.Package.Weight = 0 }, "Package.Weight"},
		{"negative length", func(r *shipment.Request) { r.Package.Length = -1 }, "Package.Length"},
		{"short account", func(r *shipment.Request) { r.Billing.Account = "1234567" }, "Billing.Account"},
		{"non-digit account", func(r *shipment.Request) { r.Billing.Account = "1234567A" }, "Billing.Account"},
		{"billing type", func(r *shipment.Request) { r.Billing.Type = "cash" }, "Billing.Type"},
		{"recipient name", func(r *shipment.Request) { r.Recipient.Name = "" }, "Recipient.Name"},
		{"street", func(r *shipment.Request) { r.Address.Street = "" }, "Address.Street"},
		{"csc needs email", func(r *shipment.Request) { r.Recipient.Email = "" }, "Recipient.Email"},
		{"email shape", func(r *shipment.Request) { r.Recipient.Email = "not-an-email" }, "Recipient.Email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := req.Validate()
			require.Error(t, err)

			var verr *shipment.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestRequest_Validate_InstitutionWithoutEmail(t *testing.T) {
	req := validRequest()
	req.Billing = shipment.BillingInput{Type: shipment.BillingInstitution, Account: "87654321"}
	req.Recipient.Email = ""
	assert.NoError(t, req.Validate())
}

func TestErrorTrackingNumber(t *testing.T) {
	tn := shipment.ErrorTrackingNumber(time.UnixMilli(1760870400123))
	assert.Equal(t, "ERROR-1760870400123", tn)
	assert.Regexp(t, regexp.MustCompile(`^ERROR-\d+$`), tn)
	assert.True(t, shipment.IsErrorTracking(tn))
	assert.False(t, shipment.IsErrorTracking("329012345678"))
}

func TestShipment_Invoiceable(t *testing.T) {
	cost := 29.5
	zero := 0.0
	tests := []struct {
		name string
		s    shipment.Shipment
		want bool
	}{
		{"csc with cost", shipment.Shipment{TrackingNumber: "329012345678", Billing: shipment.Billing{Type: shipment.BillingCSC}, EstimatedCost: &cost}, true},
		{"institution", shipment.Shipment{TrackingNumber: "329012345678", Billing: shipment.Billing{Type: shipment.BillingInstitution}, EstimatedCost: &cost}, false},
		{"zero cost", shipment.Shipment{TrackingNumber: "329012345678", Billing: shipment.Billing{Type: shipment.BillingCSC}, EstimatedCost: &zero}, false},
		{"no cost", shipment.Shipment{TrackingNumber: "329012345678", Billing: shipment.Billing{Type: shipment.BillingCSC}}, false},
		{"carrier failure", shipment.Shipment{TrackingNumber: "ERROR-1", Billing: shipment.Billing{Type: shipment.BillingCSC}, EstimatedCost: &cost}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Invoiceable())
		})
	}
}

func TestShipment_DestinationSummary(t *testing.T) {
	s, err := shipment.New(validRequest(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Toronto, ON M5H2N2", s.DestinationSummary())
}
