package shipper_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/kiosk/pkg/shipper"
)

func TestShipperError_Error(t *testing.T) {
	err := shipper.NewShipperError("purolator", "1100454", "Invalid postal code")
	assert.Equal(t, "purolator error (1100454): Invalid postal code", err.Error())
}

func TestShipperError_ErrorWithCause(t *testing.T) {
	cause := errors.New("network timeout")
	err := shipper.NewNetworkError("purolator", "TRANSPORT", "API call failed").WithCause(cause)
	assert.Contains(t, err.Error(), "API call failed")
	assert.Contains(t, err.Error(), "network timeout")
}

func TestShipperError_Unwrap(t *testing.T) {
	cause := errors.New("network timeout")
	err := shipper.NewNetworkError("purolator", "TRANSPORT", "API call failed").WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestShipperError_Is(t *testing.T) {
	err1 := shipper.NewShipperError("purolator", "INVALID_ADDRESS", "Invalid postal code")
	err2 := shipper.NewShipperError("purolator", "INVALID_ADDRESS", "Different message")

	assert.True(t, errors.Is(err1, err2))
}

func TestShipperError_IsNot(t *testing.T) {
	err1 := shipper.NewShipperError("purolator", "INVALID_ADDRESS", "Invalid postal code")
	err2 := shipper.NewShipperError("purolator", "DIFFERENT_CODE", "Different error")

	assert.False(t, errors.Is(err1, err2))
}

func TestShipperError_KindSentinels(t *testing.T) {
	protocol := shipper.NewProtocolError("purolator", "soap:Server", "fault")
	network := shipper.NewNetworkError("purolator", "HTTP_503", "unavailable").WithStatusCode(503)

	assert.True(t, errors.Is(protocol, shipper.ErrCarrierProtocol))
	assert.False(t, errors.Is(protocol, shipper.ErrCarrierNetwork))
	assert.True(t, errors.Is(network, shipper.ErrCarrierNetwork))
	assert.False(t, errors.Is(network, shipper.ErrCarrierProtocol))
	assert.Equal(t, 503, network.StatusCode)
}

func TestShipperError_KindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("create shipment: %w", shipper.NewProtocolError("purolator", "E1", "bad"))
	assert.True(t, errors.Is(err, shipper.ErrCarrierProtocol))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, shipper.IsRetryable(shipper.NewNetworkError("purolator", "TRANSPORT", "reset")))
	assert.False(t, shipper.IsRetryable(shipper.NewProtocolError("purolator", "E1", "bad")))
	assert.False(t, shipper.IsRetryable(shipper.ErrInvalidPostalCode))
}

func TestRawResponse(t *testing.T) {
	err := fmt.Errorf("wrapped: %w",
		shipper.NewProtocolError("purolator", "E1", "bad").WithRawResponse("<Errors>...</Errors>"))
	assert.Equal(t, "<Errors>...</Errors>", shipper.RawResponse(err))
	assert.Empty(t, shipper.RawResponse(errors.New("plain")))
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrCarrierProtocol", shipper.ErrCarrierProtocol},
		{"ErrCarrierNetwork", shipper.ErrCarrierNetwork},
		{"ErrServiceNotOffered", shipper.ErrServiceNotOffered},
		{"ErrLabelNotAvailable", shipper.ErrLabelNotAvailable},
		{"ErrTrackingNotFound", shipper.ErrTrackingNotFound},
		{"ErrInvalidPostalCode", shipper.ErrInvalidPostalCode},
		{"ErrInvalidProvince", shipper.ErrInvalidProvince},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
