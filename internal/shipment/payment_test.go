package shipment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kiosk/internal/shipment"
)

func pendingCSC() *shipment.Shipment {
	return &shipment.Shipment{
		ID:            "ship-1",
		Billing:       shipment.Billing{Type: shipment.BillingCSC, Account: "12345678"},
		PaymentStatus: shipment.PaymentPending,
	}
}

func TestApplyPaymentEvent_Paid(t *testing.T) {
	s := pendingCSC()
	at := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)

	require.True(t, s.ApplyPaymentEvent(shipment.PaymentPaid, at))
	assert.Equal(t, shipment.PaymentPaid, s.PaymentStatus)
	require.NotNil(t, s.PaidAt)
	assert.Equal(t, at, *s.PaidAt)
}

func TestApplyPaymentEvent_Idempotent(t *testing.T) {
	s := pendingCSC()
	at := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)

	require.True(t, s.ApplyPaymentEvent(shipment.PaymentPaid, at))
	snapshot := *s

	assert.False(t, s.ApplyPaymentEvent(shipment.PaymentPaid, at))
	assert.Equal(t, snapshot, *s)
}

func TestApplyPaymentEvent_NeverLeavesPaid(t *testing.T) {
	s := pendingCSC()
	paidAt := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	require.True(t, s.ApplyPaymentEvent(shipment.PaymentPaid, paidAt))

	assert.False(t, s.ApplyPaymentEvent(shipment.PaymentPending, paidAt.Add(time.Minute)))
	assert.False(t, s.ApplyPaymentEvent(shipment.PaymentFailed, paidAt.Add(time.Hour)))
	assert.Equal(t, shipment.PaymentPaid, s.PaymentStatus)
}

func TestApplyPaymentEvent_OutOfOrder(t *testing.T) {
	s := pendingCSC()
	t0 := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)

	require.True(t, s.ApplyPaymentEvent(shipment.PaymentFailed, t0.Add(time.Hour)))
	assert.False(t, s.ApplyPaymentEvent(shipment.PaymentPending, t0), "older event is ignored")
	assert.Equal(t, shipment.PaymentFailed, s.PaymentStatus)

	require.True(t, s.ApplyPaymentEvent(shipment.PaymentPaid, t0.Add(2*time.Hour)))
	assert.Equal(t, shipment.PaymentPaid, s.PaymentStatus)
}

func TestApplyPaymentEvent_Terminal(t *testing.T) {
	for _, status := range []shipment.PaymentStatus{shipment.PaymentVoided, shipment.PaymentUncollectible} {
		s := pendingCSC()
		require.True(t, s.ApplyPaymentEvent(status, time.Now()))
		assert.Equal(t, status, s.PaymentStatus)
		assert.Nil(t, s.PaidAt)
	}
}

func TestApplyPaymentEvent_InstitutionIgnored(t *testing.T) {
	s := &shipment.Shipment{
		Billing:       shipment.Billing{Type: shipment.BillingInstitution},
		PaymentStatus: shipment.PaymentNone,
	}
	assert.False(t, s.ApplyPaymentEvent(shipment.PaymentPaid, time.Now()))
	assert.Equal(t, shipment.PaymentNone, s.PaymentStatus)
}

func TestApplyPaymentEvent_RejectsUnknown(t *testing.T) {
	s := pendingCSC()
	assert.False(t, s.ApplyPaymentEvent("refunded", time.Now()))
	assert.False(t, s.ApplyPaymentEvent(shipment.PaymentNone, time.Now()))
}
