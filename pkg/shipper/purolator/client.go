// Package purolator provides integration with the Purolator E-Ship web services.
package purolator

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tournevent/kiosk/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierName = "purolator"

const trackerURL = "https://www.purolator.com/en/shipping/tracker"

// Config holds Purolator configuration.
type Config struct {
	Key      string
	Password string

	// SenderAccount is the kiosk operator's account, sent as the sender
	// TaxNumber. The registered account is always the billing account.
	SenderAccount string

	Production bool
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	UseMock    bool
}

// Client is the Purolator API client. It is stateless and safe for
// concurrent use.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Purolator client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewSOAPAPIClient(SOAPAPIClientConfig{
			Endpoints: EndpointsFor(BaseURL(cfg.Production, cfg.BaseURL)),
			Username:  cfg.Key,
			Password:  cfg.Password,
			Timeout:   cfg.Timeout,
			Retries:   cfg.Retries,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Purolator client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(carrierName)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// QuickEstimate returns the PurolatorGround price for a parcel. A missing or
// non-positive Ground price is reported as shipper.ErrServiceNotOffered.
func (c *Client) QuickEstimate(ctx context.Context, req *shipper.EstimateRequest) (float64, error) {
	ctx, span := c.startSpan(ctx, "QuickEstimate")
	defer span.End()

	dest := addressToAPI(req.Destination)
	apiReq := &QuickEstimateRequest{
		BillingAccountNumber: req.BillingAccount,
		SenderPostalCode:     shipper.FormatPostalCode(req.Origin.PostalCode),
		ReceiverAddress: Address{
			City:       dest.City,
			Province:   dest.Province,
			Country:    dest.Country,
			PostalCode: dest.PostalCode,
		},
		PackageType: PackageTypeCustomer,
		TotalWeight: Weight{Value: req.Package.Weight, Unit: string(shipper.WeightLB)},
	}

	resp, err := c.apiClient.GetQuickEstimate(ctx, apiReq)
	if err != nil {
		return 0, c.fail(ctx, span, "quick estimate", err)
	}

	rate, ok := SelectGround(estimatesToRates(resp.Estimates))
	if !ok || rate.TotalPrice <= 0 {
		return 0, c.fail(ctx, span, "quick estimate", shipper.ErrServiceNotOffered)
	}

	span.SetAttributes(attribute.Float64("purolator.total_price", rate.TotalPrice))
	c.logger.Ctx(ctx).Debug("Purolator quick estimate",
		zap.String("destination_postal", apiReq.ReceiverAddress.PostalCode),
		zap.Float64("total_price", rate.TotalPrice),
	)
	return rate.TotalPrice, nil
}

// FullEstimate prices a fully described shipment and returns every service
// the carrier offered. Use SelectGround to pick the supported service.
func (c *Client) FullEstimate(ctx context.Context, req *shipper.EstimateRequest) ([]shipper.RateOption, error) {
	ctx, span := c.startSpan(ctx, "FullEstimate")
	defer span.End()

	apiReq := &FullEstimateRequest{
		Sender:                  addressToAPI(req.Origin),
		Receiver:                addressToAPI(req.Destination),
		Package:                 packageToAPI(req.Package, DefaultDescription),
		BillingAccountNumber:    req.BillingAccount,
		RegisteredAccountNumber: req.BillingAccount,
		ShowAlternativeServices: true,
	}

	resp, err := c.apiClient.GetFullEstimate(ctx, apiReq)
	if err != nil {
		return nil, c.fail(ctx, span, "full estimate", err)
	}
	return estimatesToRates(resp.Estimates), nil
}

// SelectGround picks the PurolatorGround option and ignores alternatives.
func SelectGround(rates []shipper.RateOption) (shipper.RateOption, bool) {
	for _, r := range rates {
		if r.ServiceID == ServicePurolatorGround {
			return r, true
		}
	}
	return shipper.RateOption{}, false
}

// ValidateShipment asks the carrier to check a shipment without creating it.
// Field errors come back verbatim in the returned error.
func (c *Client) ValidateShipment(ctx context.Context, req *shipper.ShipmentRequest) error {
	ctx, span := c.startSpan(ctx, "ValidateShipment")
	defer span.End()

	resp, err := c.apiClient.ValidateShipment(ctx, c.shipmentToAPI(req))
	if err == nil && !resp.Valid {
		err = shipper.NewProtocolError(carrierName, "INVALID_SHIPMENT", "shipment failed validation")
	}
	if err != nil {
		return c.fail(ctx, span, "validate shipment", err)
	}
	return nil
}

// CreateShipment creates a PurolatorGround shipment on the pre-scheduled pickup.
func (c *Client) CreateShipment(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.CreatedShipment, error) {
	ctx, span := c.startSpan(ctx, "CreateShipment")
	defer span.End()

	c.logger.Ctx(ctx).Info("Creating Purolator shipment",
		zap.String("reference", req.Reference),
		zap.String("recipient", req.Receiver.Name),
		zap.String("destination_postal", req.Receiver.PostalCode),
	)

	resp, err := c.apiClient.CreateShipment(ctx, c.shipmentToAPI(req))
	if err != nil {
		return nil, c.fail(ctx, span, "create shipment", err)
	}

	tracking := resp.TrackingNumber()
	span.SetAttributes(attribute.String("purolator.pin", tracking))
	return &shipper.CreatedShipment{
		ShipmentPIN:    resp.ShipmentPIN,
		PiecePINs:      resp.PiecePINs,
		TrackingNumber: tracking,
		RawResponse:    resp.RawResponse,
	}, nil
}

// GetDocuments retrieves the DomesticBillOfLading label for a shipment PIN.
func (c *Client) GetDocuments(ctx context.Context, pin string) (*shipper.Label, error) {
	ctx, span := c.startSpan(ctx, "GetDocuments")
	defer span.End()

	resp, err := c.apiClient.GetDocuments(ctx, &DocumentsRequest{PIN: pin, DocumentType: DocumentBillOfLading})
	if err != nil {
		return nil, c.fail(ctx, span, "get documents", err)
	}
	return &shipper.Label{PIN: pin, DocumentType: DocumentBillOfLading, Data: resp.Data}, nil
}

// TrackByPin returns the scan history for a PIN.
func (c *Client) TrackByPin(ctx context.Context, pin string) (*shipper.TrackingResult, error) {
	ctx, span := c.startSpan(ctx, "TrackByPin")
	defer span.End()

	resp, err := c.apiClient.TrackPackagesByPin(ctx, pin)
	if err != nil {
		return nil, c.fail(ctx, span, "track", err)
	}

	events := make([]shipper.TrackingEvent, 0, len(resp.Scans))
	for _, s := range resp.Scans {
		events = append(events, shipper.TrackingEvent{
			Timestamp:   parseScanTime(s.Date, s.Time),
			Description: s.Description,
			Location:    s.Location,
			Type:        s.Type,
		})
	}
	return &shipper.TrackingResult{PIN: resp.PIN, Events: events}, nil
}

// ValidatePickup checks a pickup request against the carrier's rules.
func (c *Client) ValidatePickup(ctx context.Context, req *shipper.PickupRequest) error {
	ctx, span := c.startSpan(ctx, "ValidatePickup")
	defer span.End()

	if _, err := c.apiClient.ValidatePickUp(ctx, pickupToAPI(req)); err != nil {
		return c.fail(ctx, span, "validate pickup", err)
	}
	return nil
}

// SchedulePickup books the pickup and returns the carrier confirmation.
func (c *Client) SchedulePickup(ctx context.Context, req *shipper.PickupRequest) (*shipper.PickupConfirmation, error) {
	ctx, span := c.startSpan(ctx, "SchedulePickup")
	defer span.End()

	resp, err := c.apiClient.SchedulePickUp(ctx, pickupToAPI(req))
	if err != nil {
		return nil, c.fail(ctx, span, "schedule pickup", err)
	}

	c.logger.Ctx(ctx).Info("Purolator pickup scheduled",
		zap.String("date", req.Date),
		zap.String("confirmation", resp.ConfirmationNumber),
	)
	return &shipper.PickupConfirmation{ConfirmationNumber: resp.ConfirmationNumber}, nil
}

// TrackingURL returns the public tracking page for a PIN. A non-zero
// shipDate is appended as sdate.
func TrackingURL(pin string, shipDate time.Time) string {
	q := url.Values{}
	q.Set("pin", pin)
	u := trackerURL + "?" + q.Encode()
	if !shipDate.IsZero() {
		u += "&sdate=" + shipDate.Format("2006-01-02")
	}
	return u
}

// ============================================================================
// Helpers
// ============================================================================

func (c *Client) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "purolator."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("carrier", carrierName)),
	)
}

func (c *Client) fail(ctx context.Context, span trace.Span, operation string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	c.logger.Ctx(ctx).Error("Purolator API error",
		zap.String("operation", operation),
		zap.Error(err),
		zap.String("raw_response", truncate(shipper.RawResponse(err), 2048)),
	)
	return fmt.Errorf("purolator %s: %w", operation, err)
}

func (c *Client) shipmentToAPI(req *shipper.ShipmentRequest) *ShipmentRequest {
	description := req.Description
	if description == "" {
		description = DefaultDescription
	}
	printer := req.PrinterType
	if printer == "" {
		printer = PrinterTypeThermal
	}
	taxNumber := req.SenderTaxNumber
	if taxNumber == "" {
		taxNumber = c.config.SenderAccount
	}
	if taxNumber == "" {
		taxNumber = req.BillingAccount
	}

	return &ShipmentRequest{
		Sender:                  addressToAPI(req.Sender),
		SenderTaxNumber:         taxNumber,
		Receiver:                addressToAPI(req.Receiver),
		ReceiverTaxNumber:       ReceiverTaxNumber,
		Package:                 packageToAPI(req.Package, description),
		BillingAccountNumber:    req.BillingAccount,
		RegisteredAccountNumber: req.BillingAccount,
		PickupType:              PickupTypePreScheduled,
		Reference1:              req.Reference,
		PrinterType:             printer,
	}
}

func addressToAPI(addr shipper.Address) Address {
	country := addr.Country
	if country == "" {
		country = shipper.DefaultCountry
	}
	phone := addr.Phone
	if phone.AreaCode == "" || phone.Number == "" {
		phone = shipper.ParsePhoneNumber("")
	}
	if phone.CountryCode == "" {
		phone.CountryCode = "1"
	}

	return Address{
		Name:         addr.Name,
		Company:      addr.Company,
		StreetNumber: addr.StreetNumber,
		StreetName:   addr.StreetName,
		City:         addr.City,
		Province:     shipper.NormalizeProvince(addr.Province),
		Country:      country,
		PostalCode:   shipper.FormatPostalCode(addr.PostalCode),
		PhoneNumber: PhoneNumber{
			CountryCode: phone.CountryCode,
			AreaCode:    phone.AreaCode,
			Phone:       phone.Number,
		},
		Email: addr.Email,
	}
}

func packageToAPI(pkg shipper.Package, description string) PackageInformation {
	weight := Weight{Value: pkg.Weight, Unit: string(shipper.WeightLB)}
	return PackageInformation{
		ServiceID:   ServicePurolatorGround,
		Description: description,
		TotalWeight: weight,
		TotalPieces: 1,
		Pieces: []Piece{{
			Weight: weight,
			Length: pkg.Length,
			Width:  pkg.Width,
			Height: pkg.Height,
		}},
	}
}

func pickupToAPI(req *shipper.PickupRequest) *PickupRequest {
	return &PickupRequest{
		BillingAccountNumber:   req.BillingAccount,
		Date:                   req.Date,
		AnyTimeAfter:           req.ReadyTime,
		UntilTime:              req.CloseTime,
		TotalWeight:            Weight{Value: req.TotalWeight, Unit: string(shipper.WeightLB)},
		TotalPieces:            req.TotalPieces,
		PickUpLocation:         req.Location,
		AdditionalInstructions: req.Instructions,
		LoadingDockAvailable:   req.LoadingDock,
		TrailerAccessible:      req.TrailerAccessible,
		ShipmentOnSkids:        req.ShipmentOnSkids,
		Address:                addressToAPI(req.Address),
	}
}

func estimatesToRates(estimates []ShipmentEstimate) []shipper.RateOption {
	rates := make([]shipper.RateOption, 0, len(estimates))
	for _, e := range estimates {
		rates = append(rates, shipper.RateOption{
			ServiceID:            e.ServiceID,
			TotalPrice:           e.TotalPrice,
			BasePrice:            e.BasePrice,
			ExpectedDeliveryDate: e.ExpectedDeliveryDate,
			EstimatedTransitDays: e.EstimatedTransitDays,
		})
	}
	return rates
}

func parseScanTime(date, clock string) time.Time {
	if t, err := time.Parse("2006-01-02 150405", date+" "+clock); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t
	}
	return time.Time{}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ shipper.Carrier = (*Client)(nil)
