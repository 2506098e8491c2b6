package purolator

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/kiosk/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing and for
// running the kiosk without carrier credentials.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetQuickEstimate   func(ctx context.Context, req *QuickEstimateRequest) (*EstimateResponse, error)
	OnGetFullEstimate    func(ctx context.Context, req *FullEstimateRequest) (*EstimateResponse, error)
	OnValidateShipment   func(ctx context.Context, req *ShipmentRequest) (*ValidateResponse, error)
	OnCreateShipment     func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)
	OnGetDocuments       func(ctx context.Context, req *DocumentsRequest) (*DocumentsResponse, error)
	OnTrackPackagesByPin func(ctx context.Context, pin string) (*TrackingResponse, error)
	OnValidatePickUp     func(ctx context.Context, req *PickupRequest) (*ValidatePickupResponse, error)
	OnSchedulePickUp     func(ctx context.Context, req *PickupRequest) (*PickupResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate(ctx context.Context) error {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return shipper.NewNetworkError(carrierName, "TRANSPORT", "request cancelled").WithCause(ctx.Err())
		}
	}
	if m.SimulateErrors {
		return shipper.NewProtocolError(carrierName, "MOCK_ERROR", "Simulated API error")
	}
	return nil
}

func mockEstimates() *EstimateResponse {
	return &EstimateResponse{
		Estimates: []ShipmentEstimate{
			{
				ServiceID:            ServicePurolatorGround,
				BasePrice:            18.75,
				TotalPrice:           24.12,
				ExpectedDeliveryDate: time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
				EstimatedTransitDays: 3,
			},
			{
				ServiceID:            "PurolatorExpress",
				BasePrice:            31.40,
				TotalPrice:           39.88,
				ExpectedDeliveryDate: time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
				EstimatedTransitDays: 1,
			},
		},
	}
}

// GetQuickEstimate returns mock estimates.
func (m *MockAPIClient) GetQuickEstimate(ctx context.Context, req *QuickEstimateRequest) (*EstimateResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnGetQuickEstimate != nil {
		return m.OnGetQuickEstimate(ctx, req)
	}
	return mockEstimates(), nil
}

// GetFullEstimate returns mock estimates.
func (m *MockAPIClient) GetFullEstimate(ctx context.Context, req *FullEstimateRequest) (*EstimateResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnGetFullEstimate != nil {
		return m.OnGetFullEstimate(ctx, req)
	}
	return mockEstimates(), nil
}

// ValidateShipment accepts every shipment.
func (m *MockAPIClient) ValidateShipment(ctx context.Context, req *ShipmentRequest) (*ValidateResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnValidateShipment != nil {
		return m.OnValidateShipment(ctx, req)
	}
	return &ValidateResponse{Valid: true}, nil
}

// CreateShipment creates a mock shipment with a numeric PIN.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	pin := fmt.Sprintf("329%09d", uuid.New().ID()%1000000000)
	return &ShipmentResponse{
		ShipmentPIN: pin,
		PiecePINs:   []string{pin},
		RawResponse: fmt.Sprintf("<CreateShipmentResponse><ShipmentPIN><Value>%s</Value></ShipmentPIN></CreateShipmentResponse>", pin),
	}, nil
}

// GetDocuments returns a placeholder PDF.
func (m *MockAPIClient) GetDocuments(ctx context.Context, req *DocumentsRequest) (*DocumentsResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnGetDocuments != nil {
		return m.OnGetDocuments(ctx, req)
	}
	return &DocumentsResponse{
		PIN:  req.PIN,
		Data: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 mock purolator label " + req.PIN)),
	}, nil
}

// TrackPackagesByPin returns mock scans.
func (m *MockAPIClient) TrackPackagesByPin(ctx context.Context, pin string) (*TrackingResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnTrackPackagesByPin != nil {
		return m.OnTrackPackagesByPin(ctx, pin)
	}

	now := time.Now()
	return &TrackingResponse{
		PIN: pin,
		Scans: []Scan{
			{
				Type:        "Other",
				Date:        now.Add(-24 * time.Hour).Format("2006-01-02"),
				Time:        "093000",
				Description: "Shipment created",
				Location:    "Niagara Falls, ON",
			},
			{
				Type:        "ProofOfPickUp",
				Date:        now.Format("2006-01-02"),
				Time:        "141500",
				Description: "Picked up by Purolator",
				Location:    "Niagara Falls, ON",
			},
		},
	}, nil
}

// ValidatePickUp accepts every pickup.
func (m *MockAPIClient) ValidatePickUp(ctx context.Context, req *PickupRequest) (*ValidatePickupResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnValidatePickUp != nil {
		return m.OnValidatePickUp(ctx, req)
	}
	return &ValidatePickupResponse{Valid: true}, nil
}

// SchedulePickUp returns a mock confirmation number.
func (m *MockAPIClient) SchedulePickUp(ctx context.Context, req *PickupRequest) (*PickupResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnSchedulePickUp != nil {
		return m.OnSchedulePickUp(ctx, req)
	}
	return &PickupResponse{ConfirmationNumber: fmt.Sprintf("%08d", uuid.New().ID()%100000000)}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
