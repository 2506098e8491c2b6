package invoice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kiosk/pkg/invoice"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(api invoice.APIClient) *invoice.Client {
	return invoice.NewWithAPIClient(invoice.Config{WebhookSecret: testSecret}, api, otelzap.New(zap.NewNop()), nil)
}

func shipmentInvoice() *invoice.ShipmentInvoiceRequest {
	return &invoice.ShipmentInvoiceRequest{
		ShipmentID:         "ship-1",
		TrackingNumber:     "329012345678",
		TrackingURL:        "https://www.purolator.com/en/shipping/tracker?pin=329012345678",
		Contact:            invoice.Contact{Name: "Jane Smith", Email: "jane@example.com", Phone: "4165551234"},
		Organization:       "University of Toronto",
		Amount:             34.7,
		DestinationSummary: "Toronto, ON M5H2N2",
	}
}

func TestClient_CreateInvoiceForShipment(t *testing.T) {
	api := invoice.NewMockAPIClient()
	var draft *invoice.DraftRequest
	var item *invoice.LineItemRequest

	client := newTestClient(&recordingAPI{MockAPIClient: api, draft: &draft, item: &item})

	inv, err := client.CreateInvoiceForShipment(context.Background(), shipmentInvoice())
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, "open", inv.Status)
	assert.NotEmpty(t, inv.HostedURL)
	assert.NotEmpty(t, inv.PDFURL)
	assert.Equal(t, int64(3470), inv.AmountDue)

	require.NotNil(t, draft)
	assert.Equal(t, int64(invoice.DefaultDueDays), draft.DaysUntilDue)
	assert.Equal(t, "ship-1", draft.Metadata[invoice.MetadataShipmentID])

	require.NotNil(t, item)
	assert.Contains(t, item.Description, "329012345678")
	assert.Contains(t, item.Description, "tracker?pin=329012345678")

	customers := api.Customers()
	require.Len(t, customers, 1)
	assert.Equal(t, "jane@example.com", customers[0].Email)
	assert.Equal(t, "University of Toronto", customers[0].Organization)
}

func TestClient_CreateInvoiceForShipment_FreshCustomerEachTime(t *testing.T) {
	api := invoice.NewMockAPIClient()
	client := newTestClient(api)

	_, err := client.CreateInvoiceForShipment(context.Background(), shipmentInvoice())
	require.NoError(t, err)
	_, err = client.CreateInvoiceForShipment(context.Background(), shipmentInvoice())
	require.NoError(t, err)

	assert.Len(t, api.Customers(), 2)
}

func TestClient_CreateInvoiceForShipment_Validation(t *testing.T) {
	client := newTestClient(invoice.NewMockAPIClient())

	req := shipmentInvoice()
	req.Amount = 0
	_, err := client.CreateInvoiceForShipment(context.Background(), req)
	assert.ErrorIs(t, err, invoice.ErrInvalidAmount)

	req = shipmentInvoice()
	req.Contact.Email = " "
	_, err = client.CreateInvoiceForShipment(context.Background(), req)
	assert.ErrorIs(t, err, invoice.ErrMissingEmail)
}

func TestClient_CreateInvoiceForShipment_APIError(t *testing.T) {
	api := invoice.NewMockAPIClient()
	api.SimulateErrors = true
	client := newTestClient(api)

	_, err := client.CreateInvoiceForShipment(context.Background(), shipmentInvoice())
	require.Error(t, err)

	var invErr *invoice.Error
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, 402, invErr.StatusCode)
	assert.False(t, invErr.Retryable())
}

func TestClient_SendReminderAndVoid(t *testing.T) {
	api := invoice.NewMockAPIClient()
	client := newTestClient(api)

	inv, err := client.CreateInvoiceForShipment(context.Background(), shipmentInvoice())
	require.NoError(t, err)

	sent, err := client.SendReminder(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, sent.ID)

	voided, err := client.VoidInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "void", voided.Status)

	_, err = client.VoidInvoice(context.Background(), "in_missing")
	assert.Error(t, err)
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(1500), invoice.ToCents(15))
	assert.Equal(t, int64(2913), invoice.ToCents(29.13))
}

func TestIsLiveKey(t *testing.T) {
	assert.True(t, invoice.IsLiveKey("sk_live_abc"))
	assert.True(t, invoice.IsLiveKey("pk_live_abc"))
	assert.False(t, invoice.IsLiveKey("sk_test_abc"))
	assert.False(t, invoice.IsLiveKey(""))
}

// recordingAPI captures the draft and line item requests.
type recordingAPI struct {
	*invoice.MockAPIClient
	draft **invoice.DraftRequest
	item  **invoice.LineItemRequest
}

func (r *recordingAPI) CreateInvoice(ctx context.Context, req *invoice.DraftRequest) (*invoice.Invoice, error) {
	*r.draft = req
	return r.MockAPIClient.CreateInvoice(ctx, req)
}

func (r *recordingAPI) AddLineItem(ctx context.Context, req *invoice.LineItemRequest) error {
	*r.item = req
	return r.MockAPIClient.AddLineItem(ctx, req)
}
