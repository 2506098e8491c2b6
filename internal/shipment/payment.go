package shipment

import "time"

// ApplyPaymentEvent projects a provider event onto the payment status.
// Events older than the last applied one are ignored, a paid shipment never
// moves to another status, and re-applying the current status is a no-op.
// It reports whether the shipment changed.
func (s *Shipment) ApplyPaymentEvent(status PaymentStatus, at time.Time) bool {
	if !status.Valid() || status == PaymentNone {
		return false
	}
	if s.Billing.Type != BillingCSC {
		return false
	}
	if s.PaymentEventAt != nil && at.Before(*s.PaymentEventAt) {
		return false
	}
	if s.PaymentStatus == PaymentPaid {
		return false
	}
	if s.PaymentStatus == status {
		return false
	}

	s.PaymentStatus = status
	eventAt := at
	s.PaymentEventAt = &eventAt
	if status == PaymentPaid {
		paidAt := at
		s.PaidAt = &paidAt
	}
	return true
}
