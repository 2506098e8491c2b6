package notifier_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kiosk/internal/notifier"
	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []*notifier.Message
	failOn   string
}

func (r *recordingMailer) Send(ctx context.Context, msg *notifier.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && msg.Subject == r.failOn {
		return "", errors.New("mailbox unavailable")
	}
	r.messages = append(r.messages, msg)
	return "msg_" + msg.Subject, nil
}

func (r *recordingMailer) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Subject)
	}
	sort.Strings(out)
	return out
}

func (r *recordingMailer) bySubject(subject string) *notifier.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.Subject == subject {
			return m
		}
	}
	return nil
}

func testShipment() *shipment.Shipment {
	cost := 34.7
	return &shipment.Shipment{
		ID:             "a",
		TrackingNumber: "329000000001",
		Recipient: shipment.Recipient{
			Name:         "Jane <Smith>",
			Email:        "jane@example.com",
			Organization: "University of Toronto",
		},
		Destination:   shipper.Address{City: "Toronto", Province: "ON", PostalCode: "M5H2N2"},
		Billing:       shipment.Billing{Type: shipment.BillingCSC, Account: "12345678"},
		EstimatedCost: &cost,
		Label:         base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 label")),
		CreatedAt:     time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC),
	}
}

func newNotifier(m notifier.Mailer) *notifier.Notifier {
	return notifier.New(notifier.Config{InternalTo: "office@example.com"}, m, otelzap.New(zap.NewNop()))
}

func TestNotifier_ShipmentCreated(t *testing.T) {
	m := &recordingMailer{}
	n := newNotifier(m)

	require.NoError(t, n.ShipmentCreated(context.Background(), testShipment()))

	assert.Equal(t, []string{
		"New Shipment: 329000000001 - Jane <Smith>",
		"Shipping Label - 329000000001",
		"Your Package is on the Way - Tracking #329000000001",
	}, m.subjects())

	tracking := m.bySubject("Your Package is on the Way - Tracking #329000000001")
	require.NotNil(t, tracking)
	assert.Equal(t, []string{"jane@example.com"}, tracking.To)
	assert.Equal(t, "Campus Stores Canada <noreply@campusstores.ca>", tracking.From)
	assert.Contains(t, tracking.Text, "https://www.purolator.com/en/shipping/tracker?pin=329000000001&sdate=2026-10-19")
	assert.Contains(t, tracking.HTML, "Jane &lt;Smith&gt;")
	assert.NotContains(t, tracking.HTML, "Jane <Smith>")

	internal := m.bySubject("New Shipment: 329000000001 - Jane <Smith>")
	require.NotNil(t, internal)
	assert.Equal(t, []string{"office@example.com"}, internal.To)
	assert.Contains(t, internal.HTML, "$34.70")
	assert.Contains(t, internal.HTML, "CSC Account #12345678")
	assert.Contains(t, internal.HTML, "Toronto, ON M5H2N2")

	label := m.bySubject("Shipping Label - 329000000001")
	require.NotNil(t, label)
	require.Len(t, label.Attachments, 1)
	assert.Equal(t, "label-329000000001.pdf", label.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4 label"), label.Attachments[0].Content)
}

func TestNotifier_ErrorShipmentOnlyNotifiesOffice(t *testing.T) {
	m := &recordingMailer{}
	n := newNotifier(m)

	s := testShipment()
	s.TrackingNumber = "ERROR-1760886000000"
	s.Label = ""

	require.NoError(t, n.ShipmentCreated(context.Background(), s))
	assert.Equal(t, []string{"New Shipment: ERROR-1760886000000 - Jane <Smith>"}, m.subjects())

	internal := m.bySubject("New Shipment: ERROR-1760886000000 - Jane <Smith>")
	assert.Contains(t, internal.HTML, "No label was retrieved")
}

func TestNotifier_NoRecipientEmail(t *testing.T) {
	m := &recordingMailer{}
	n := newNotifier(m)

	s := testShipment()
	s.Recipient.Email = ""
	s.Billing.Type = shipment.BillingInstitution

	require.NoError(t, n.ShipmentCreated(context.Background(), s))
	assert.Len(t, m.subjects(), 2)
	assert.Contains(t, m.bySubject("New Shipment: 329000000001 - Jane <Smith>").HTML, "Institution Account")
}

func TestNotifier_FailureIsReturned(t *testing.T) {
	m := &recordingMailer{failOn: "New Shipment: 329000000001 - Jane <Smith>"}
	n := newNotifier(m)

	err := n.ShipmentCreated(context.Background(), testShipment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending internal mail")
}

func TestNotifier_NilMailerIsNoop(t *testing.T) {
	n := notifier.New(notifier.Config{}, nil, otelzap.New(zap.NewNop()))
	assert.NoError(t, n.ShipmentCreated(context.Background(), testShipment()))
}

// slowMailer fails the tracking mail at once and holds the other mails for a
// short while, giving up early only if their context is cancelled.
type slowMailer struct {
	recordingMailer
	failTo string
}

func (m *slowMailer) Send(ctx context.Context, msg *notifier.Message) (string, error) {
	if len(msg.To) > 0 && msg.To[0] == m.failTo {
		return "", errors.New("recipient rejected")
	}
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return m.recordingMailer.Send(ctx, msg)
}

func TestNotifier_FailedMailDoesNotCancelOthers(t *testing.T) {
	m := &slowMailer{failTo: "jane@example.com"}
	n := newNotifier(m)

	err := n.ShipmentCreated(context.Background(), testShipment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending tracking mail")
	assert.Equal(t, []string{
		"New Shipment: 329000000001 - Jane <Smith>",
		"Shipping Label - 329000000001",
	}, m.subjects())
}
