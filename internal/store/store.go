// Package store persists kiosk shipments.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/kiosk/internal/shipment"
)

// Store is the persistence boundary for shipments. Inserts are strictly
// new records; there is no upsert on tracking number.
type Store interface {
	InsertShipment(ctx context.Context, s *shipment.Shipment) error
	UpdateShipmentFields(ctx context.Context, id string, u Update) error
	GetShipmentByID(ctx context.Context, id string) (*shipment.Shipment, error)
	ListShipments(ctx context.Context, limit int) ([]*shipment.Shipment, error)
	Close() error
}

// Update is a partial shipment update. Nil fields are left untouched.
type Update struct {
	Label          *string
	Invoice        *shipment.InvoiceRef
	PaymentStatus  *shipment.PaymentStatus
	PaidAt         *time.Time
	PaymentEventAt *time.Time
	Status         *shipment.Status

	// InitialPaymentStatus is applied only while the stored status is
	// still none, so it never overwrites a webhook that arrived first.
	InitialPaymentStatus *shipment.PaymentStatus

	// IfPayment makes the update conditional on the stored payment state.
	// A mismatch fails with ErrConflict and writes nothing.
	IfPayment *PaymentGuard
}

// PaymentGuard is the payment state an update was computed from.
type PaymentGuard struct {
	Status  shipment.PaymentStatus
	EventAt *time.Time
}

// Matches reports whether s still has the guarded payment state.
func (g PaymentGuard) Matches(s *shipment.Shipment) bool {
	if s.PaymentStatus != g.Status {
		return false
	}
	if s.PaymentEventAt == nil || g.EventAt == nil {
		return s.PaymentEventAt == nil && g.EventAt == nil
	}
	return s.PaymentEventAt.Equal(*g.EventAt)
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Label == nil && u.Invoice == nil && u.PaymentStatus == nil &&
		u.PaidAt == nil && u.PaymentEventAt == nil && u.Status == nil &&
		u.InitialPaymentStatus == nil
}

// PaymentUpdate builds the update that persists a projected payment status,
// guarded by the state the projection started from.
func PaymentUpdate(s *shipment.Shipment, from PaymentGuard) Update {
	status := s.PaymentStatus
	return Update{
		PaymentStatus:  &status,
		PaidAt:         s.PaidAt,
		PaymentEventAt: s.PaymentEventAt,
		IfPayment:      &from,
	}
}

var (
	// ErrNotFound indicates no shipment has the requested ID.
	ErrNotFound = errors.New("shipment not found")

	// ErrDuplicateTracking indicates a second non-error shipment with the
	// same tracking number.
	ErrDuplicateTracking = errors.New("duplicate tracking number")

	// ErrInvalidShipment indicates a record that breaks a storage invariant.
	ErrInvalidShipment = errors.New("invalid shipment record")

	// ErrConflict indicates the payment state changed since it was read.
	ErrConflict = errors.New("shipment payment state changed concurrently")
)

// Error wraps a persistence failure with the operation that failed.
type Error struct {
	Op    string
	ID    string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.ID, e.Cause)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// checkInvariants enforces the record rules both stores share.
func checkInvariants(s *shipment.Shipment) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidShipment)
	case s.TrackingNumber == "":
		return fmt.Errorf("%w: missing tracking number", ErrInvalidShipment)
	case s.Recipient.Name == "":
		return fmt.Errorf("%w: missing recipient", ErrInvalidShipment)
	case s.Destination.City == "" || s.Destination.PostalCode == "":
		return fmt.Errorf("%w: missing destination", ErrInvalidShipment)
	case s.PaymentStatus != shipment.PaymentNone && s.Billing.Type != shipment.BillingCSC:
		return fmt.Errorf("%w: payment status %s on %s billing", ErrInvalidShipment, s.PaymentStatus, s.Billing.Type)
	case shipment.IsErrorTracking(s.TrackingNumber) && s.Label != "":
		return fmt.Errorf("%w: label on failed shipment", ErrInvalidShipment)
	}
	return nil
}
