package invoice_test

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/tournevent/kiosk/pkg/invoice"
)

const testSecret = "whsec_test_secret"

func signedHeader(payload []byte, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func invoiceEvent(eventType string, created int64, metadata string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_123",
  "object": "event",
  "api_version": "2024-06-20",
  "type": %q,
  "created": %d,
  "data": {"object": {"id": "in_123", "object": "invoice", "status": "paid", "metadata": %s}}
}`, eventType, created, metadata))
}

func TestClient_ParseWebhook(t *testing.T) {
	client := newTestClient(invoice.NewMockAPIClient())
	payload := invoiceEvent("invoice.paid", 1760000000, `{"shipmentId": "ship-1"}`)

	event, err := client.ParseWebhook(payload, signedHeader(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, invoice.EventInvoicePaid, event.Type)
	assert.Equal(t, "in_123", event.InvoiceID)
	assert.Equal(t, "ship-1", event.ShipmentID)
	assert.Equal(t, invoice.PaymentPaid, event.PaymentStatus)
	assert.Equal(t, time.Unix(1760000000, 0).UTC(), event.Created)
	assert.True(t, event.Recognized())
}

func TestClient_ParseWebhook_StatusMapping(t *testing.T) {
	client := newTestClient(invoice.NewMockAPIClient())

	cases := map[string]string{
		"invoice.paid":                 invoice.PaymentPaid,
		"invoice.payment_failed":       invoice.PaymentFailed,
		"invoice.voided":               invoice.PaymentVoided,
		"invoice.marked_uncollectible": invoice.PaymentUncollectible,
		"invoice.sent":                 invoice.PaymentPending,
		"invoice.created":              "",
	}
	for eventType, want := range cases {
		t.Run(eventType, func(t *testing.T) {
			payload := invoiceEvent(eventType, 1760000000, `{"shipmentId": "ship-1"}`)
			event, err := client.ParseWebhook(payload, signedHeader(payload, testSecret, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, want, event.PaymentStatus)
		})
	}
}

func TestClient_ParseWebhook_MissingShipmentID(t *testing.T) {
	client := newTestClient(invoice.NewMockAPIClient())
	payload := invoiceEvent("invoice.paid", 1760000000, `{}`)

	event, err := client.ParseWebhook(payload, signedHeader(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Empty(t, event.ShipmentID)
}

func TestClient_ParseWebhook_InvalidSignature(t *testing.T) {
	client := newTestClient(invoice.NewMockAPIClient())
	payload := invoiceEvent("invoice.paid", 1760000000, `{"shipmentId": "ship-1"}`)

	_, err := client.ParseWebhook(payload, signedHeader(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, invoice.ErrInvalidSignature)

	_, err = client.ParseWebhook(payload, "")
	assert.ErrorIs(t, err, invoice.ErrInvalidSignature)

	_, err = client.ParseWebhook(payload, signedHeader(payload, testSecret, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, invoice.ErrInvalidSignature)
}

func TestClient_ParseWebhook_SignedButUndecodable(t *testing.T) {
	client := newTestClient(invoice.NewMockAPIClient())

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "invoice payload", payload: invoiceEvent("invoice.paid", 1760000000, `["ship-1"]`)},
		{name: "not json", payload: []byte(`invoice.paid ship-1`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ParseWebhook(tt.payload, signedHeader(tt.payload, testSecret, time.Now()))
			assert.ErrorIs(t, err, invoice.ErrMalformedEvent)
			assert.NotErrorIs(t, err, invoice.ErrInvalidSignature)
		})
	}
}

func TestClient_ParseWebhook_NonInvoiceEvent(t *testing.T) {
	client := newTestClient(invoice.NewMockAPIClient())
	payload := []byte(`{"id":"evt_9","object":"event","type":"customer.created","created":1760000000,"data":{"object":{"id":"cus_1","object":"customer"}}}`)

	event, err := client.ParseWebhook(payload, signedHeader(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.False(t, event.Recognized())
	assert.Empty(t, event.InvoiceID)
}
