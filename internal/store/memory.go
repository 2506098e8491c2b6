package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tournevent/kiosk/internal/shipment"
)

// MemoryStore keeps shipments in process memory. It backs tests and the
// kiosk's offline mode.
type MemoryStore struct {
	mu        sync.RWMutex
	shipments map[string]*shipment.Shipment
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shipments: make(map[string]*shipment.Shipment),
		now:       time.Now,
	}
}

// InsertShipment stores a new shipment.
func (m *MemoryStore) InsertShipment(ctx context.Context, s *shipment.Shipment) error {
	if err := checkInvariants(s); err != nil {
		return &Error{Op: "insert", ID: s.ID, Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shipments[s.ID]; ok {
		return &Error{Op: "insert", ID: s.ID, Cause: ErrInvalidShipment}
	}
	if !shipment.IsErrorTracking(s.TrackingNumber) {
		for _, existing := range m.shipments {
			if existing.TrackingNumber == s.TrackingNumber {
				return &Error{Op: "insert", ID: s.ID, Cause: ErrDuplicateTracking}
			}
		}
	}

	m.shipments[s.ID] = clone(s)
	return nil
}

// UpdateShipmentFields applies a partial update.
func (m *MemoryStore) UpdateShipmentFields(ctx context.Context, id string, u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shipments[id]
	if !ok {
		return &Error{Op: "update", ID: id, Cause: ErrNotFound}
	}
	if u.IfPayment != nil && !u.IfPayment.Matches(s) {
		return &Error{Op: "update", ID: id, Cause: ErrConflict}
	}
	if u.Empty() {
		return nil
	}

	next := clone(s)
	if u.Label != nil {
		next.Label = *u.Label
	}
	if u.Invoice != nil {
		ref := *u.Invoice
		next.Invoice = &ref
	}
	if u.PaymentStatus != nil {
		next.PaymentStatus = *u.PaymentStatus
	}
	if u.InitialPaymentStatus != nil && next.PaymentStatus == shipment.PaymentNone {
		next.PaymentStatus = *u.InitialPaymentStatus
	}
	if u.PaidAt != nil {
		t := *u.PaidAt
		next.PaidAt = &t
	}
	if u.PaymentEventAt != nil {
		t := *u.PaymentEventAt
		next.PaymentEventAt = &t
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	if err := checkInvariants(next); err != nil {
		return &Error{Op: "update", ID: id, Cause: err}
	}

	next.UpdatedAt = m.now()
	m.shipments[id] = next
	return nil
}

// GetShipmentByID returns a copy of the stored shipment.
func (m *MemoryStore) GetShipmentByID(ctx context.Context, id string) (*shipment.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shipments[id]
	if !ok {
		return nil, &Error{Op: "get", ID: id, Cause: ErrNotFound}
	}
	return clone(s), nil
}

// ListShipments returns the most recent shipments first.
func (m *MemoryStore) ListShipments(ctx context.Context, limit int) ([]*shipment.Shipment, error) {
	m.mu.RLock()
	out := make([]*shipment.Shipment, 0, len(m.shipments))
	for _, s := range m.shipments {
		out = append(out, clone(s))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func clone(s *shipment.Shipment) *shipment.Shipment {
	c := *s
	if s.EstimatedCost != nil {
		v := *s.EstimatedCost
		c.EstimatedCost = &v
	}
	if s.Invoice != nil {
		v := *s.Invoice
		c.Invoice = &v
	}
	if s.PaidAt != nil {
		v := *s.PaidAt
		c.PaidAt = &v
	}
	if s.PaymentEventAt != nil {
		v := *s.PaymentEventAt
		c.PaymentEventAt = &v
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
