// Package webhook receives signed payment-provider events over HTTP.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tournevent/kiosk/internal/orchestrator"
	"github.com/tournevent/kiosk/internal/telemetry"
	"github.com/tournevent/kiosk/pkg/invoice"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// SignatureHeader carries the provider's payload signature.
const SignatureHeader = "Stripe-Signature"

// MaxBodyBytes bounds the accepted payload size.
const MaxBodyBytes = 1 << 20

// Parser verifies and decodes a raw event.
type Parser interface {
	ParseWebhook(payload []byte, signatureHeader string) (*invoice.Event, error)
}

// Applier projects a verified event onto its shipment.
type Applier interface {
	ApplyPaymentEvent(ctx context.Context, e *invoice.Event) (orchestrator.WebhookResult, error)
}

// Handler is the payment webhook endpoint. It answers 400 when the
// signature does not verify, 500 when a verified event could not be decoded
// or recorded, and 200 otherwise, including for events it ignores. A 500
// makes the provider redeliver the event.
type Handler struct {
	parser  Parser
	applier Applier
	logger  *otelzap.Logger
	metrics *telemetry.Metrics
}

// NewHandler creates a webhook handler. metrics may be nil.
func NewHandler(parser Parser, applier Applier, logger *otelzap.Logger, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		parser:  parser,
		applier: applier,
		logger:  logger,
		metrics: metrics,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.Ctx(ctx)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed, use POST"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		h.record("unknown", "unreadable")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	event, err := h.parser.ParseWebhook(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, invoice.ErrInvalidSignature) {
			h.record("unknown", "invalid_signature")
			logger.Warn("Rejected webhook with invalid signature", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
			return
		}
		h.record("unknown", "malformed")
		logger.Error("Failed to decode verified webhook", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "undecodable event"})
		return
	}

	result, err := h.applier.ApplyPaymentEvent(context.WithoutCancel(ctx), event)
	if err != nil {
		h.record(event.Type, "error")
		logger.Error("Failed to apply payment event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.record(event.Type, string(result))
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) record(eventType, result string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(eventType, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
