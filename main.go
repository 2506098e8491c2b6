package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/kiosk/internal/graphql"
	"github.com/tournevent/kiosk/internal/server"
	"github.com/tournevent/kiosk/internal/webhook"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kiosk",
	Short:   "Conference shipping kiosk - Purolator shipments billed through Stripe",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GraphQL server and payment webhook",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer func() { _ = tracerShutdown(context.Background()) }()
	}

	app, err := newApp(ctx, cfg, logger, tracer, true)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("Starting shipping kiosk",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("purolator_mode", cfg.PurolatorMode()),
		zap.String("stripe_mode", cfg.Stripe().Mode),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("kafka", cfg.KafkaEnabled()),
	)

	srv := server.New(server.Config{Port: cfg.Port}, server.Deps{
		GraphQL:  graphql.NewExecutor(graphql.NewResolver(app.orchestrator, logger)),
		Webhook:  webhook.NewHandler(app.invoicer, app.orchestrator, logger, app.metrics),
		Gatherer: app.registry,
		Logger:   logger,
		Drain:    app.orchestrator.Wait,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
