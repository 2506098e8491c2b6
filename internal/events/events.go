// Package events publishes shipment lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tournevent/kiosk/internal/shipment"
)

// Event types.
const (
	TypeShipmentCreated      = "shipment.created"
	TypePaymentStatusChanged = "shipment.payment_status_changed"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits shipment lifecycle events.
type Publisher interface {
	ShipmentCreated(ctx context.Context, s *shipment.Shipment) error
	PaymentStatusChanged(ctx context.Context, s *shipment.Shipment, eventID string) error
	Close() error
}

// Event is the JSON payload written to the topic.
type Event struct {
	Type           string    `json:"type"`
	ShipmentID     string    `json:"shipmentId"`
	TrackingNumber string    `json:"trackingNumber"`
	BillingType    string    `json:"billingType"`
	EstimatedCost  float64   `json:"estimatedCost"`
	PaymentStatus  string    `json:"paymentStatus"`
	InvoiceID      string    `json:"invoiceId,omitempty"`
	SourceEventID  string    `json:"sourceEventId,omitempty"`
	LabelAvailable bool      `json:"labelAvailable"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// KafkaPublisher writes events keyed by shipment id.
type KafkaPublisher struct {
	writer Writer
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher writing to topic on the comma
// separated brokers.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(w)
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

// ShipmentCreated publishes shipment.created.
func (p *KafkaPublisher) ShipmentCreated(ctx context.Context, s *shipment.Shipment) error {
	return p.publish(ctx, p.event(TypeShipmentCreated, s))
}

// PaymentStatusChanged publishes shipment.payment_status_changed.
func (p *KafkaPublisher) PaymentStatusChanged(ctx context.Context, s *shipment.Shipment, eventID string) error {
	e := p.event(TypePaymentStatusChanged, s)
	e.SourceEventID = eventID
	return p.publish(ctx, e)
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) event(typ string, s *shipment.Shipment) *Event {
	e := &Event{
		Type:           typ,
		ShipmentID:     s.ID,
		TrackingNumber: s.TrackingNumber,
		BillingType:    string(s.Billing.Type),
		EstimatedCost:  s.Cost(),
		PaymentStatus:  string(s.PaymentStatus),
		LabelAvailable: s.Label != "",
		OccurredAt:     p.now().UTC(),
	}
	if s.Invoice != nil {
		e.InvoiceID = s.Invoice.ID
	}
	return e
}

func (p *KafkaPublisher) publish(ctx context.Context, e *Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.ShipmentID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}
	return nil
}

// NoopPublisher discards events. It is used when no brokers are configured.
type NoopPublisher struct{}

// ShipmentCreated implements Publisher.
func (NoopPublisher) ShipmentCreated(context.Context, *shipment.Shipment) error { return nil }

// PaymentStatusChanged implements Publisher.
func (NoopPublisher) PaymentStatusChanged(context.Context, *shipment.Shipment, string) error {
	return nil
}

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
