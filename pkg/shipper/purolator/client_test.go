package purolator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kiosk/pkg/shipper"
	"github.com/tournevent/kiosk/pkg/shipper/purolator"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *purolator.MockAPIClient) *purolator.Client {
	logger := otelzap.New(zap.NewNop())
	return purolator.NewWithAPIClient(
		purolator.Config{SenderAccount: "11111111"},
		mockClient,
		logger,
		nil,
	)
}

func kioskAddress() shipper.Address {
	return shipper.Address{
		Name:         "Tournevent Kiosk",
		StreetNumber: "6650",
		StreetName:   "Niagara Pkwy",
		City:         "Niagara Falls",
		Province:     "Ontario",
		PostalCode:   "l2e 6t2",
		Phone:        shipper.ParsePhoneNumber("(905) 555-0100"),
	}
}

func receiverAddress() shipper.Address {
	return shipper.Address{
		Name:         "Jane Smith",
		StreetNumber: "456",
		StreetName:   "Oak Ave",
		City:         "Vancouver",
		Province:     "bc",
		PostalCode:   "V6B 2W2",
	}
}

func TestClient_Name(t *testing.T) {
	client := newTestClient(purolator.NewMockAPIClient())
	assert.Equal(t, "purolator", client.Name())
}

func TestClient_QuickEstimate(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	var got *purolator.QuickEstimateRequest
	mockAPI.OnGetQuickEstimate = func(ctx context.Context, req *purolator.QuickEstimateRequest) (*purolator.EstimateResponse, error) {
		got = req
		return &purolator.EstimateResponse{Estimates: []purolator.ShipmentEstimate{
			{ServiceID: "PurolatorExpress", TotalPrice: 40},
			{ServiceID: purolator.ServicePurolatorGround, TotalPrice: 21.5},
		}}, nil
	}
	client := newTestClient(mockAPI)

	price, err := client.QuickEstimate(context.Background(), &shipper.EstimateRequest{
		Origin:         kioskAddress(),
		Destination:    receiverAddress(),
		Package:        shipper.Package{Weight: 3},
		BillingAccount: "22222222",
	})
	require.NoError(t, err)
	assert.InDelta(t, 21.5, price, 0.001)

	require.NotNil(t, got)
	assert.Equal(t, "L2E6T2", got.SenderPostalCode)
	assert.Equal(t, "V6B2W2", got.ReceiverAddress.PostalCode)
	assert.Equal(t, "BC", got.ReceiverAddress.Province)
	assert.Equal(t, "CA", got.ReceiverAddress.Country)
	assert.Equal(t, "22222222", got.BillingAccountNumber)
}

func TestClient_QuickEstimate_GroundMissing(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.OnGetQuickEstimate = func(ctx context.Context, req *purolator.QuickEstimateRequest) (*purolator.EstimateResponse, error) {
		return &purolator.EstimateResponse{Estimates: []purolator.ShipmentEstimate{
			{ServiceID: "PurolatorExpress", TotalPrice: 40},
		}}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.QuickEstimate(context.Background(), &shipper.EstimateRequest{
		Origin:      kioskAddress(),
		Destination: receiverAddress(),
		Package:     shipper.Package{Weight: 3},
	})
	assert.ErrorIs(t, err, shipper.ErrServiceNotOffered)
}

func TestClient_QuickEstimate_ZeroPrice(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.OnGetQuickEstimate = func(ctx context.Context, req *purolator.QuickEstimateRequest) (*purolator.EstimateResponse, error) {
		return &purolator.EstimateResponse{Estimates: []purolator.ShipmentEstimate{
			{ServiceID: purolator.ServicePurolatorGround, TotalPrice: 0},
		}}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.QuickEstimate(context.Background(), &shipper.EstimateRequest{Package: shipper.Package{Weight: 1}})
	assert.ErrorIs(t, err, shipper.ErrServiceNotOffered)
}

func TestClient_FullEstimate(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	var got *purolator.FullEstimateRequest
	mockAPI.OnGetFullEstimate = func(ctx context.Context, req *purolator.FullEstimateRequest) (*purolator.EstimateResponse, error) {
		got = req
		return &purolator.EstimateResponse{Estimates: []purolator.ShipmentEstimate{
			{ServiceID: purolator.ServicePurolatorGround, TotalPrice: 18.2, EstimatedTransitDays: 4},
		}}, nil
	}
	client := newTestClient(mockAPI)

	rates, err := client.FullEstimate(context.Background(), &shipper.EstimateRequest{
		Origin:         kioskAddress(),
		Destination:    receiverAddress(),
		Package:        shipper.Package{Length: 10, Width: 8, Height: 4, Weight: 2},
		BillingAccount: "22222222",
	})
	require.NoError(t, err)

	ground, ok := purolator.SelectGround(rates)
	require.True(t, ok)
	assert.InDelta(t, 18.2, ground.TotalPrice, 0.001)
	assert.Equal(t, 4, ground.EstimatedTransitDays)

	require.NotNil(t, got)
	assert.Equal(t, "ON", got.Sender.Province)
	assert.Equal(t, "L2E6T2", got.Sender.PostalCode)
	assert.Equal(t, "905", got.Sender.PhoneNumber.AreaCode)
	assert.Equal(t, "000", got.Receiver.PhoneNumber.AreaCode)
	assert.Equal(t, "0000000", got.Receiver.PhoneNumber.Phone)
	assert.Equal(t, "22222222", got.RegisteredAccountNumber)
	require.Len(t, got.Package.Pieces, 1)
	assert.Equal(t, 1, got.Package.TotalPieces)
	assert.Equal(t, purolator.DefaultDescription, got.Package.Description)
}

func TestSelectGround(t *testing.T) {
	_, ok := purolator.SelectGround(nil)
	assert.False(t, ok)

	rate, ok := purolator.SelectGround([]shipper.RateOption{
		{ServiceID: "PurolatorExpress", TotalPrice: 30},
		{ServiceID: "PurolatorGround", TotalPrice: 20},
	})
	require.True(t, ok)
	assert.InDelta(t, 20.0, rate.TotalPrice, 0.001)
}

func TestClient_CreateShipment(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	var got *purolator.ShipmentRequest
	mockAPI.OnCreateShipment = func(ctx context.Context, req *purolator.ShipmentRequest) (*purolator.ShipmentResponse, error) {
		got = req
		return &purolator.ShipmentResponse{PiecePINs: []string{"329000000042"}, RawResponse: "<ok/>"}, nil
	}
	client := newTestClient(mockAPI)

	created, err := client.CreateShipment(context.Background(), &shipper.ShipmentRequest{
		Reference:      "ship-1",
		Sender:         kioskAddress(),
		Receiver:       receiverAddress(),
		Package:        shipper.Package{Length: 10, Width: 8, Height: 4, Weight: 2},
		BillingAccount: "22222222",
	})
	require.NoError(t, err)
	assert.Equal(t, "329000000042", created.TrackingNumber)
	assert.Equal(t, "<ok/>", created.RawResponse)

	require.NotNil(t, got)
	assert.Equal(t, "ship-1", got.Reference1)
	assert.Equal(t, purolator.PickupTypePreScheduled, got.PickupType)
	assert.Equal(t, purolator.PrinterTypeThermal, got.PrinterType)
	assert.Equal(t, "22222222", got.BillingAccountNumber)
	assert.Equal(t, "22222222", got.RegisteredAccountNumber)
	assert.Equal(t, "11111111", got.SenderTaxNumber)
	assert.Equal(t, purolator.ReceiverTaxNumber, got.ReceiverTaxNumber)
	assert.Equal(t, purolator.ServicePurolatorGround, got.Package.ServiceID)
}

func TestClient_CreateShipment_APIError(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.CreateShipment(context.Background(), &shipper.ShipmentRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, shipper.ErrCarrierProtocol)
}

func TestClient_ValidateShipment(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	client := newTestClient(mockAPI)
	require.NoError(t, client.ValidateShipment(context.Background(), &shipper.ShipmentRequest{Sender: kioskAddress(), Receiver: receiverAddress()}))

	mockAPI.OnValidateShipment = func(ctx context.Context, req *purolator.ShipmentRequest) (*purolator.ValidateResponse, error) {
		return nil, shipper.NewProtocolError("purolator", "1100220", "Invalid postal code")
	}
	err := client.ValidateShipment(context.Background(), &shipper.ShipmentRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid postal code")

	mockAPI.OnValidateShipment = func(ctx context.Context, req *purolator.ShipmentRequest) (*purolator.ValidateResponse, error) {
		return &purolator.ValidateResponse{Valid: false}, nil
	}
	err = client.ValidateShipment(context.Background(), &shipper.ShipmentRequest{})
	assert.ErrorIs(t, err, shipper.ErrCarrierProtocol)
}

func TestClient_GetDocuments(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	client := newTestClient(mockAPI)

	label, err := client.GetDocuments(context.Background(), "329000000042")
	require.NoError(t, err)
	assert.Equal(t, "329000000042", label.PIN)
	assert.Equal(t, purolator.DocumentBillOfLading, label.DocumentType)
	assert.NotEmpty(t, label.Data)
}

func TestClient_GetDocuments_NotAvailable(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.OnGetDocuments = func(ctx context.Context, req *purolator.DocumentsRequest) (*purolator.DocumentsResponse, error) {
		return nil, shipper.NewProtocolError("purolator", "NO_DOCUMENT_DATA", "no data").WithCause(shipper.ErrLabelNotAvailable)
	}
	client := newTestClient(mockAPI)

	_, err := client.GetDocuments(context.Background(), "1")
	assert.ErrorIs(t, err, shipper.ErrLabelNotAvailable)
}

func TestClient_TrackByPin(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.OnTrackPackagesByPin = func(ctx context.Context, pin string) (*purolator.TrackingResponse, error) {
		return &purolator.TrackingResponse{PIN: pin, Scans: []purolator.Scan{
			{Type: "Delivery", Date: "2026-10-18", Time: "101500", Description: "Delivered", Location: "Vancouver"},
		}}, nil
	}
	client := newTestClient(mockAPI)

	result, err := client.TrackByPin(context.Background(), "329000000042")
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "Delivered", result.Events[0].Description)
	assert.Equal(t, time.Date(2026, 10, 18, 10, 15, 0, 0, time.UTC), result.Events[0].Timestamp)
}

func TestClient_TrackByPin_NotFound(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.OnTrackPackagesByPin = func(ctx context.Context, pin string) (*purolator.TrackingResponse, error) {
		return nil, shipper.NewShipperError("purolator", "NOT_FOUND", "none").WithCause(shipper.ErrTrackingNotFound)
	}
	client := newTestClient(mockAPI)

	_, err := client.TrackByPin(context.Background(), "000")
	assert.True(t, errors.Is(err, shipper.ErrTrackingNotFound))
}

func TestClient_SchedulePickup(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	var validated, scheduled *purolator.PickupRequest
	mockAPI.OnValidatePickUp = func(ctx context.Context, req *purolator.PickupRequest) (*purolator.ValidatePickupResponse, error) {
		validated = req
		return &purolator.ValidatePickupResponse{Valid: true}, nil
	}
	mockAPI.OnSchedulePickUp = func(ctx context.Context, req *purolator.PickupRequest) (*purolator.PickupResponse, error) {
		scheduled = req
		return &purolator.PickupResponse{ConfirmationNumber: "01234567"}, nil
	}
	client := newTestClient(mockAPI)

	req := &shipper.PickupRequest{
		BillingAccount: "11111111",
		Date:           "2026-10-20",
		ReadyTime:      "09:00",
		CloseTime:      "17:00",
		TotalWeight:    40,
		TotalPieces:    8,
		Location:       "Front desk",
		Address:        kioskAddress(),
	}
	require.NoError(t, client.ValidatePickup(context.Background(), req))
	conf, err := client.SchedulePickup(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "01234567", conf.ConfirmationNumber)

	require.NotNil(t, validated)
	require.NotNil(t, scheduled)
	assert.Equal(t, "09:00", scheduled.AnyTimeAfter)
	assert.Equal(t, "17:00", scheduled.UntilTime)
	assert.InDelta(t, 40.0, scheduled.TotalWeight.Value, 0.001)
	assert.Equal(t, "ON", scheduled.Address.Province)
}

func TestClient_ContextCancelled(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.SimulateLatency = time.Second
	client := newTestClient(mockAPI)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FullEstimate(ctx, &shipper.EstimateRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, shipper.ErrCarrierNetwork)
}

func TestTrackingURL(t *testing.T) {
	assert.Equal(t,
		"https://www.purolator.com/en/shipping/tracker?pin=329000000042",
		purolator.TrackingURL("329000000042", time.Time{}))
	assert.Equal(t,
		"https://www.purolator.com/en/shipping/tracker?pin=329000000042&sdate=2026-10-19",
		purolator.TrackingURL("329000000042", time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)))
}
