package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tournevent/kiosk/internal/config"
	"github.com/tournevent/kiosk/internal/events"
	"github.com/tournevent/kiosk/internal/notifier"
	"github.com/tournevent/kiosk/internal/orchestrator"
	"github.com/tournevent/kiosk/internal/store"
	"github.com/tournevent/kiosk/internal/telemetry"
	"github.com/tournevent/kiosk/pkg/invoice"
	"github.com/tournevent/kiosk/pkg/shipper/purolator"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

// app is the wired kiosk: adapters, store and orchestrator.
type app struct {
	orchestrator *orchestrator.Orchestrator
	invoicer     *invoice.Client
	store        store.Store
	publisher    events.Publisher
	registry     *prometheus.Registry
	metrics      *telemetry.Metrics
	logger       *otelzap.Logger
	profile      *config.Profile
}

func newApp(ctx context.Context, cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer, withMetrics bool) (*app, error) {
	profile, err := config.LoadProfile(cfg.StationProfile)
	if err != nil {
		return nil, err
	}

	a := &app{logger: logger, profile: profile}
	if withMetrics {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = telemetry.NewMetrics(a.registry)
	}

	a.store, err = initStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	carrier := purolator.New(purolator.Config{
		Key:           cfg.PurolatorKey,
		Password:      cfg.PurolatorPassword,
		SenderAccount: cfg.PurolatorCSCAccount,
		Production:    cfg.PurolatorUseProduction,
		BaseURL:       cfg.PurolatorBaseURL,
		Timeout:       cfg.PurolatorTimeout,
		Retries:       cfg.PurolatorRetries,
		UseMock:       cfg.PurolatorUseMock,
	}, logger, tracer)

	keys := cfg.Stripe()
	a.invoicer = invoice.New(invoice.Config{
		SecretKey:     keys.SecretKey,
		WebhookSecret: keys.WebhookSecret,
		DueDays:       cfg.InvoiceDueDays,
		UseMock:       cfg.StripeUseMock,
	}, logger, tracer)

	var mailer notifier.Mailer = notifier.NoopMailer{}
	if cfg.ResendAPIKey != "" {
		mailer = notifier.NewResendMailer(cfg.ResendAPIKey)
	} else {
		logger.Warn("RESEND_API_KEY not set, shipment mails are disabled")
	}
	mail := notifier.New(notifier.Config{
		Organization: profile.Sender.Company,
		From:         cfg.MailFrom,
		InternalTo:   cfg.NotificationEmail,
	}, mailer, logger)

	a.publisher = events.NoopPublisher{}
	if cfg.KafkaEnabled() {
		a.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	sender := profile.SenderAddress()
	a.orchestrator = orchestrator.New(orchestrator.Config{
		Sender:             sender,
		CSCAccount:         cfg.PurolatorCSCAccount,
		SkipValidation:     cfg.SkipValidation,
		Box:                profile.StandardPackage(0),
		PickupLocation:     profile.Pickup.Location,
		PickupInstructions: profile.Pickup.Instructions,
		PickupLoadingDock:  profile.Pickup.LoadingDock,
	}, orchestrator.Deps{
		Carrier:   carrier,
		Invoicer:  a.invoicer,
		Store:     a.store,
		Notifier:  mail,
		Publisher: a.publisher,
		Logger:    logger,
		Metrics:   a.metrics,
		Tracer:    tracer,
	})
	return a, nil
}

// Close waits for background work, then releases the store and publisher.
func (a *app) Close() {
	a.orchestrator.Wait()
	if err := errors.Join(a.publisher.Close(), a.store.Close()); err != nil {
		a.logger.Warn("Failed to close resources", zap.Error(err))
	}
}

func initStore(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("Using in-memory store, shipments are lost on restart")
		return store.NewMemoryStore(), nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store.NewPostgresStore(db), nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.StoreDriver != config.DriverPostgres {
		return nil, fmt.Errorf("store driver %q has no database", cfg.StoreDriver)
	}
	return store.OpenPostgres(ctx, cfg.DatabaseURL)
}
