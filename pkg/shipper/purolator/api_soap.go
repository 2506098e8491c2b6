package purolator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tournevent/kiosk/pkg/shipper"
)

// SOAPAPIClient is the production implementation of APIClient. Request
// bodies are rendered from literal prefixed XML templates.
type SOAPAPIClient struct {
	endpoints  Endpoints
	username   string
	password   string
	httpClient *http.Client
	retries    int
	retryWait  time.Duration
}

// SOAPAPIClientConfig holds configuration for the SOAP client.
type SOAPAPIClientConfig struct {
	Endpoints  Endpoints
	Username   string
	Password   string
	Timeout    time.Duration
	Retries    int
	RetryWait  time.Duration
	HTTPClient *http.Client
}

// NewSOAPAPIClient creates a new SOAP-based API client for production use.
func NewSOAPAPIClient(cfg SOAPAPIClientConfig) *SOAPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	retryWait := cfg.RetryWait
	if retryWait == 0 {
		retryWait = 500 * time.Millisecond
	}

	return &SOAPAPIClient{
		endpoints:  cfg.Endpoints,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		retries:    max(cfg.Retries, 0),
		retryWait:  retryWait,
	}
}

// GetQuickEstimate prices a parcel with the EstimatingService.
func (c *SOAPAPIClient) GetQuickEstimate(ctx context.Context, req *QuickEstimateRequest) (*EstimateResponse, error) {
	raw, err := c.call(ctx, c.endpoints.Estimating, versionV2, "GetQuickEstimate", req)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	if body.GetQuickEstimateResponse == nil {
		return nil, missingResponse("GetQuickEstimateResponse", raw)
	}
	return parseEstimates(body.GetQuickEstimateResponse, raw)
}

// GetFullEstimate prices a fully described shipment with the EstimatingService.
func (c *SOAPAPIClient) GetFullEstimate(ctx context.Context, req *FullEstimateRequest) (*EstimateResponse, error) {
	raw, err := c.call(ctx, c.endpoints.Estimating, versionV2, "GetFullEstimate", req)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	if body.GetFullEstimateResponse == nil {
		return nil, missingResponse("GetFullEstimateResponse", raw)
	}
	return parseEstimates(body.GetFullEstimateResponse, raw)
}

// ValidateShipment dry-runs a shipment with the ShippingService.
func (c *SOAPAPIClient) ValidateShipment(ctx context.Context, req *ShipmentRequest) (*ValidateResponse, error) {
	raw, err := c.call(ctx, c.endpoints.Shipping, versionV2, "ValidateShipment", req)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	resp := body.ValidateShipmentResponse
	if resp == nil {
		return nil, missingResponse("ValidateShipmentResponse", raw)
	}
	if err := resp.ResponseInformation.err(raw); err != nil {
		return nil, err
	}
	if !resp.ValidShipment {
		return nil, shipper.NewProtocolError(carrierName, "INVALID_SHIPMENT", "shipment failed validation").
			WithRawResponse(string(raw))
	}
	return &ValidateResponse{Valid: true}, nil
}

// CreateShipment creates a shipment with the ShippingService.
func (c *SOAPAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	raw, err := c.call(ctx, c.endpoints.Shipping, versionV2, "CreateShipment", req)
	if err != nil {
		return nil, err
	}
	return parseShipmentResponse(raw)
}

// GetDocuments retrieves shipping documents from the ShippingDocumentsService.
func (c *SOAPAPIClient) GetDocuments(ctx context.Context, req *DocumentsRequest) (*DocumentsResponse, error) {
	raw, err := c.call(ctx, c.endpoints.Documents, versionV1, "GetDocuments", req)
	if err != nil {
		return nil, err
	}
	return parseDocumentsResponse(raw, req.PIN)
}

// TrackPackagesByPin retrieves scan history from the TrackingService.
func (c *SOAPAPIClient) TrackPackagesByPin(ctx context.Context, pin string) (*TrackingResponse, error) {
	raw, err := c.call(ctx, c.endpoints.Tracking, versionV2, "TrackPackagesByPin", pin)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	resp := body.TrackPackagesByPinResponse
	if resp == nil {
		return nil, missingResponse("TrackPackagesByPinResponse", raw)
	}
	if err := resp.ResponseInformation.err(raw); err != nil {
		return nil, err
	}
	if len(resp.TrackingInformationList.TrackingInformation) == 0 {
		return nil, shipper.NewShipperError(carrierName, "NOT_FOUND", "no tracking information for "+pin).
			WithCause(shipper.ErrTrackingNotFound)
	}

	info := resp.TrackingInformationList.TrackingInformation[0]
	scans := make([]Scan, 0, len(info.Scans.Scan))
	for _, s := range info.Scans.Scan {
		location := s.Depot.Name
		if location == "" && s.Depot.Address.City != "" {
			location = s.Depot.Address.City + ", " + s.Depot.Address.Province
		}
		scans = append(scans, Scan{
			Type:        s.ScanType,
			Date:        s.ScanDate,
			Time:        s.ScanTime,
			Description: s.Description,
			Location:    location,
		})
	}

	trackedPIN := info.PIN.Value
	if trackedPIN == "" {
		trackedPIN = pin
	}
	return &TrackingResponse{PIN: trackedPIN, Scans: scans}, nil
}

// ValidatePickUp checks a pickup request with the PickUpService.
func (c *SOAPAPIClient) ValidatePickUp(ctx context.Context, req *PickupRequest) (*ValidatePickupResponse, error) {
	raw, err := c.call(ctx, c.endpoints.PickUp, versionV1, "ValidatePickUp", req)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	resp := body.ValidatePickUpResponse
	if resp == nil {
		return nil, missingResponse("ValidatePickUpResponse", raw)
	}
	if err := resp.ResponseInformation.err(raw); err != nil {
		return nil, err
	}
	return &ValidatePickupResponse{Valid: true}, nil
}

// SchedulePickUp books a pickup with the PickUpService.
func (c *SOAPAPIClient) SchedulePickUp(ctx context.Context, req *PickupRequest) (*PickupResponse, error) {
	raw, err := c.call(ctx, c.endpoints.PickUp, versionV1, "SchedulePickUp", req)
	if err != nil {
		return nil, err
	}

	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	resp := body.SchedulePickUpResponse
	if resp == nil {
		return nil, missingResponse("SchedulePickUpResponse", raw)
	}
	if err := resp.ResponseInformation.err(raw); err != nil {
		return nil, err
	}
	confirmation := strings.TrimSpace(resp.PickUpConfirmationNumber)
	if confirmation == "" {
		return nil, shipper.NewProtocolError(carrierName, "NO_CONFIRMATION", "no pickup confirmation number in response").
			WithRawResponse(string(raw))
	}
	return &PickupResponse{ConfirmationNumber: confirmation}, nil
}

// ============================================================================
// SOAP Request Helpers
// ============================================================================

// call renders the envelope and posts it, retrying network failures up to
// the configured count. Protocol failures are never retried.
func (c *SOAPAPIClient) call(ctx context.Context, endpoint string, version serviceVersion, operation string, data interface{}) ([]byte, error) {
	envelope, err := buildEnvelope(version, operation, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	post := func() ([]byte, error) {
		raw, err := c.doSOAPRequest(ctx, endpoint, version.action(operation), envelope)
		if err != nil && !shipper.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return raw, err
	}

	raw, err := backoff.Retry(ctx, post,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryWait)),
		backoff.WithMaxTries(uint(c.retries+1)),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return raw, err
}

func (c *SOAPAPIClient) doSOAPRequest(ctx context.Context, endpoint, action string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Purolator uses Basic Auth
	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shipper.NewNetworkError(carrierName, "TRANSPORT", "request to "+action+" failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shipper.NewNetworkError(carrierName, "TRANSPORT", "reading response failed").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseSOAPError(resp.StatusCode, raw)
	}
	return raw, nil
}

// ============================================================================
// SOAP Response Parsers - XML Types
// ============================================================================

// soapEnvelope represents a SOAP envelope response. Tags carry no
// namespace so elements match on local name whatever prefix the carrier uses.
type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    soapBody `xml:"Body"`
}

type soapBody struct {
	Fault                      *soapFault                  `xml:"Fault"`
	GetQuickEstimateResponse   *estimateResponse           `xml:"GetQuickEstimateResponse"`
	GetFullEstimateResponse    *estimateResponse           `xml:"GetFullEstimateResponse"`
	ValidateShipmentResponse   *validateShipmentResponse   `xml:"ValidateShipmentResponse"`
	CreateShipmentResponse     *createShipmentResponse     `xml:"CreateShipmentResponse"`
	GetDocumentsResponse       *getDocumentsResponse       `xml:"GetDocumentsResponse"`
	TrackPackagesByPinResponse *trackPackagesByPinResponse `xml:"TrackPackagesByPinResponse"`
	ValidatePickUpResponse     *validatePickUpResponse     `xml:"ValidatePickUpResponse"`
	SchedulePickUpResponse     *schedulePickUpResponse     `xml:"SchedulePickUpResponse"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseInfo struct {
	Errors *responseErrors `xml:"Errors"`
}

// responseErrors is the Errors element. A self-closing element, an element
// with i:nil="true", or a missing element all mean success.
type responseErrors struct {
	Nil    string          `xml:"nil,attr"`
	Errors []responseError `xml:"Error"`
	Inner  string          `xml:",innerxml"`
}

type responseError struct {
	Code        string `xml:"Code"`
	Description string `xml:"Description"`
}

func (e *responseErrors) failed() bool {
	if e == nil || e.Nil == "true" {
		return false
	}
	return strings.TrimSpace(e.Inner) != ""
}

// err converts a non-empty Errors element into a protocol error carrying
// every carrier description verbatim.
func (r responseInfo) err(raw []byte) error {
	if !r.Errors.failed() {
		return nil
	}

	code := "RESPONSE_ERRORS"
	var descriptions []string
	for _, e := range r.Errors.Errors {
		if code == "RESPONSE_ERRORS" && e.Code != "" {
			code = e.Code
		}
		if d := strings.TrimSpace(e.Description); d != "" {
			descriptions = append(descriptions, d)
		}
	}
	if len(descriptions) == 0 {
		descriptions = append(descriptions, strings.TrimSpace(r.Errors.Inner))
	}

	return shipper.NewProtocolError(carrierName, code, strings.Join(descriptions, "; ")).
		WithRawResponse(string(raw))
}

type estimateResponse struct {
	ResponseInformation responseInfo       `xml:"ResponseInformation"`
	ShipmentEstimates   []shipmentEstimate `xml:"ShipmentEstimates>ShipmentEstimate"`
}

type shipmentEstimate struct {
	ServiceID            string `xml:"ServiceID"`
	ExpectedDeliveryDate string `xml:"ExpectedDeliveryDate"`
	EstimatedTransitDays int    `xml:"EstimatedTransitDays"`
	BasePrice            string `xml:"BasePrice"`
	TotalPrice           string `xml:"TotalPrice"`
}

type validateShipmentResponse struct {
	ResponseInformation responseInfo `xml:"ResponseInformation"`
	ValidShipment       bool         `xml:"ValidShipment"`
}

type createShipmentResponse struct {
	ResponseInformation responseInfo `xml:"ResponseInformation"`
	ShipmentPIN         *soapPIN     `xml:"ShipmentPIN"`
	PiecePINs           []soapPIN    `xml:"PiecePINs>PIN"`
}

type soapPIN struct {
	Value string `xml:"Value"`
}

type getDocumentsResponse struct {
	ResponseInformation responseInfo `xml:"ResponseInformation"`
}

type trackPackagesByPinResponse struct {
	ResponseInformation     responseInfo     `xml:"ResponseInformation"`
	TrackingInformationList trackingInfoList `xml:"TrackingInformationList"`
}

type trackingInfoList struct {
	TrackingInformation []trackingInfo `xml:"TrackingInformation"`
}

type trackingInfo struct {
	PIN   soapPIN   `xml:"PIN"`
	Scans soapScans `xml:"Scans"`
}

type soapScans struct {
	Scan []soapScan `xml:"Scan"`
}

type soapScan struct {
	ScanType    string    `xml:"ScanType"`
	ScanDate    string    `xml:"ScanDate"`
	ScanTime    string    `xml:"ScanTime"`
	Description string    `xml:"Description"`
	Depot       soapDepot `xml:"Depot"`
}

type soapDepot struct {
	Name    string      `xml:"Name"`
	Address soapAddress `xml:"Address"`
}

type soapAddress struct {
	City     string `xml:"City"`
	Province string `xml:"Province"`
}

type validatePickUpResponse struct {
	ResponseInformation responseInfo `xml:"ResponseInformation"`
}

type schedulePickUpResponse struct {
	ResponseInformation      responseInfo `xml:"ResponseInformation"`
	PickUpConfirmationNumber string       `xml:"PickUpConfirmationNumber"`
}

// ============================================================================
// SOAP Response Parsing Functions
// ============================================================================

func parseSOAPError(status int, raw []byte) error {
	var env soapEnvelope
	if err := xml.Unmarshal(raw, &env); err == nil && env.Body.Fault != nil {
		return shipper.NewProtocolError(carrierName, env.Body.Fault.Code, env.Body.Fault.String).
			WithStatusCode(status).
			WithRawResponse(string(raw))
	}

	return shipper.NewNetworkError(carrierName, fmt.Sprintf("HTTP_%d", status), http.StatusText(status)).
		WithStatusCode(status).
		WithRetryable(status >= http.StatusInternalServerError).
		WithRawResponse(string(raw))
}

func decodeBody(raw []byte) (*soapBody, error) {
	var env soapEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, shipper.NewProtocolError(carrierName, "PARSE_ERROR", "malformed SOAP response").
			WithCause(err).
			WithRawResponse(string(raw))
	}

	if env.Body.Fault != nil {
		return nil, shipper.NewProtocolError(carrierName, env.Body.Fault.Code, env.Body.Fault.String).
			WithRawResponse(string(raw))
	}
	return &env.Body, nil
}

func missingResponse(element string, raw []byte) error {
	return shipper.NewProtocolError(carrierName, "PARSE_ERROR", "no "+element+" in response").
		WithRawResponse(string(raw))
}

func parseEstimates(resp *estimateResponse, raw []byte) (*EstimateResponse, error) {
	if err := resp.ResponseInformation.err(raw); err != nil {
		return nil, err
	}

	estimates := make([]ShipmentEstimate, 0, len(resp.ShipmentEstimates))
	for _, est := range resp.ShipmentEstimates {
		estimates = append(estimates, ShipmentEstimate{
			ServiceID:            strings.TrimSpace(est.ServiceID),
			BasePrice:            parseFloat(est.BasePrice),
			TotalPrice:           parseFloat(est.TotalPrice),
			ExpectedDeliveryDate: est.ExpectedDeliveryDate,
			EstimatedTransitDays: est.EstimatedTransitDays,
		})
	}
	return &EstimateResponse{Estimates: estimates}, nil
}

func parseShipmentResponse(raw []byte) (*ShipmentResponse, error) {
	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	resp := body.CreateShipmentResponse
	if resp == nil {
		return nil, missingResponse("CreateShipmentResponse", raw)
	}
	if err := resp.ResponseInformation.err(raw); err != nil {
		return nil, err
	}

	out := &ShipmentResponse{RawResponse: string(raw)}
	if resp.ShipmentPIN != nil {
		out.ShipmentPIN = strings.TrimSpace(resp.ShipmentPIN.Value)
	}
	for _, pin := range resp.PiecePINs {
		if v := strings.TrimSpace(pin.Value); v != "" {
			out.PiecePINs = append(out.PiecePINs, v)
		}
	}

	if out.TrackingNumber() == "" {
		return nil, shipper.NewProtocolError(carrierName, "NO_PIN", "no shipment PIN in response").
			WithRawResponse(string(raw))
	}
	return out, nil
}

func parseDocumentsResponse(raw []byte, pin string) (*DocumentsResponse, error) {
	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}
	if body.GetDocumentsResponse != nil {
		if err := body.GetDocumentsResponse.ResponseInformation.err(raw); err != nil {
			return nil, err
		}
	}

	data, err := firstElementText(raw, "Data")
	if err != nil {
		return nil, shipper.NewProtocolError(carrierName, "PARSE_ERROR", "malformed documents response").
			WithCause(err).
			WithRawResponse(string(raw))
	}
	if data == "" {
		return nil, shipper.NewProtocolError(carrierName, "NO_DOCUMENT_DATA", "no document data for "+pin).
			WithCause(shipper.ErrLabelNotAvailable).
			WithRawResponse(string(raw))
	}
	return &DocumentsResponse{PIN: pin, Data: data}, nil
}

// firstElementText returns the trimmed text of the first non-empty element
// with the given local name, whatever its namespace.
func firstElementText(raw []byte, local string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != local {
			continue
		}

		var text struct {
			Value string `xml:",chardata"`
		}
		if err := dec.DecodeElement(&text, &start); err != nil {
			return "", err
		}
		if v := strings.TrimSpace(text.Value); v != "" {
			return v, nil
		}
	}
}

// ============================================================================
// Helpers
// ============================================================================

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

var _ APIClient = (*SOAPAPIClient)(nil)
