package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the kiosk.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CarrierErrors   *prometheus.CounterVec
	Shipments       *prometheus.CounterVec
	Invoices        *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
}

// NewMetrics creates the kiosk metrics and registers them with reg. A nil
// reg registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_requests_total",
				Help: "Total number of requests by operation, carrier, and status",
			},
			[]string{"operation", "carrier", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiosk_request_duration_seconds",
				Help:    "Request duration in seconds by operation and carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_carrier_errors_total",
				Help: "Total carrier API errors by carrier and error type",
			},
			[]string{"carrier", "error_type"},
		),
		Shipments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_shipments_total",
				Help: "Persisted shipments by outcome",
			},
			[]string{"outcome"},
		),
		Invoices: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_invoices_total",
				Help: "Invoice operations by status",
			},
			[]string{"status"},
		),
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_webhook_events_total",
				Help: "Payment webhook events by type and result",
			},
			[]string{"type", "result"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, carrier, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, carrier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, carrier).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(carrier, errorType string) {
	m.CarrierErrors.WithLabelValues(carrier, errorType).Inc()
}

// RecordShipment counts a persisted shipment by outcome.
func (m *Metrics) RecordShipment(outcome string) {
	m.Shipments.WithLabelValues(outcome).Inc()
}

// RecordInvoice counts an invoice operation result.
func (m *Metrics) RecordInvoice(status string) {
	m.Invoices.WithLabelValues(status).Inc()
}

// RecordWebhook counts a handled webhook event.
func (m *Metrics) RecordWebhook(eventType, result string) {
	m.WebhookEvents.WithLabelValues(eventType, result).Inc()
}
