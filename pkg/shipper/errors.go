package shipper

import (
	"errors"
	"fmt"
)

// ErrorKind classifies carrier failures for the caller's degradation policy.
type ErrorKind string

const (
	KindProtocol ErrorKind = "protocol"
	KindNetwork  ErrorKind = "network"
)

// ShipperError represents an error from a shipping carrier.
type ShipperError struct {
	Carrier     string
	Code        string
	Message     string
	StatusCode  int
	Retryable   bool
	Kind        ErrorKind
	RawResponse string
	Cause       error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ShipperError. Two ShipperErrors match on
// code; the kind sentinels match on kind.
func (e *ShipperError) Is(target error) bool {
	switch target {
	case ErrCarrierProtocol:
		return e.Kind == KindProtocol
	case ErrCarrierNetwork:
		return e.Kind == KindNetwork
	}
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// NewProtocolError builds a SOAP fault or response-Errors failure.
func NewProtocolError(carrier, code, message string) *ShipperError {
	return NewShipperError(carrier, code, message).WithKind(KindProtocol)
}

// NewNetworkError builds a transport failure: timeout, TLS, DNS or a non-200 status.
func NewNetworkError(carrier, code, message string) *ShipperError {
	return NewShipperError(carrier, code, message).WithKind(KindNetwork).WithRetryable(true)
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// WithKind sets the error classification.
func (e *ShipperError) WithKind(kind ErrorKind) *ShipperError {
	e.Kind = kind
	return e
}

// WithRawResponse attaches the carrier response body for audit logging.
func (e *ShipperError) WithRawResponse(raw string) *ShipperError {
	e.RawResponse = raw
	return e
}

// Sentinel errors for common shipping scenarios.
var (
	// ErrCarrierProtocol matches any SOAP fault or non-empty Errors response.
	ErrCarrierProtocol = errors.New("carrier protocol error")

	// ErrCarrierNetwork matches any transport-level carrier failure.
	ErrCarrierNetwork = errors.New("carrier network error")

	// ErrServiceNotOffered indicates the estimate did not include the requested service.
	ErrServiceNotOffered = errors.New("service not offered")

	// ErrLabelNotAvailable indicates the label is not yet available.
	ErrLabelNotAvailable = errors.New("label not available")

	// ErrTrackingNotFound indicates the carrier knows nothing about the PIN.
	ErrTrackingNotFound = errors.New("tracking not found")

	// ErrInvalidPostalCode indicates a postal code not in A1A1A1 shape.
	ErrInvalidPostalCode = errors.New("invalid postal code")

	// ErrInvalidProvince indicates a province outside the 13 Canadian codes.
	ErrInvalidProvince = errors.New("invalid province")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return false
}

// RawResponse returns the carrier response attached to err, if any.
func RawResponse(err error) string {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.RawResponse
	}
	return ""
}
