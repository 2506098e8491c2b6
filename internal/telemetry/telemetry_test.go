package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kiosk/internal/telemetry"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, telemetry.ParseLevel(in), in)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := telemetry.NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordRequest("createShipment", "purolator", "success", 0.25)
	m.RecordError("purolator", "network")
	m.RecordShipment("created")
	m.RecordShipment("created")
	m.RecordInvoice("created")
	m.RecordWebhook("invoice.paid", "updated")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("createShipment", "purolator", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CarrierErrors.WithLabelValues("purolator", "network")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Shipments.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invoices.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("invoice.paid", "updated")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}
