package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tournevent/kiosk/internal/config"
	"github.com/tournevent/kiosk/internal/orchestrator"
	"github.com/tournevent/kiosk/internal/store"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations",
	RunE:  runMigrate,
}

var pickupCmd = &cobra.Command{
	Use:   "pickup",
	Short: "Validate and schedule the conference pickup",
	RunE:  runPickup,
}

var trackCmd = &cobra.Command{
	Use:   "track <tracking-number>",
	Short: "Print the carrier scans of a shipment",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

var pickupFlags struct {
	date         string
	readyTime    string
	closeTime    string
	weight       float64
	pieces       int
	account      string
	location     string
	instructions string
	validateOnly bool
}

func init() {
	f := pickupCmd.Flags()
	f.StringVar(&pickupFlags.date, "date", "", "pickup date (YYYY-MM-DD), defaults to tomorrow")
	f.StringVar(&pickupFlags.readyTime, "ready", "", "ready time (HH:MM), defaults to the station profile")
	f.StringVar(&pickupFlags.closeTime, "close", "", "close time (HH:MM), defaults to the station profile")
	f.Float64Var(&pickupFlags.weight, "weight", 0, "total weight in pounds")
	f.IntVar(&pickupFlags.pieces, "pieces", 0, "total number of parcels")
	f.StringVar(&pickupFlags.account, "account", "", "billing account, defaults to the station account")
	f.StringVar(&pickupFlags.location, "location", "", "pickup location at the station")
	f.StringVar(&pickupFlags.instructions, "instructions", "", "instructions for the driver")
	f.BoolVar(&pickupFlags.validateOnly, "validate-only", false, "only validate the pickup with the carrier")
	_ = pickupCmd.MarkFlagRequired("weight")
	_ = pickupCmd.MarkFlagRequired("pieces")

	rootCmd.AddCommand(migrateCmd, pickupCmd, trackCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
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

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("Migrations applied")
	return nil
}

func runPickup(cmd *cobra.Command, args []string) error {
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

	app, err := newApp(ctx, cfg, logger, nil, false)
	if err != nil {
		return err
	}
	defer app.Close()

	in := pickupInput(app.profile, time.Now())
	result, err := app.orchestrator.SchedulePickup(ctx, in)
	if err != nil {
		logger.Error("Pickup failed", zap.String("date", in.Date), zap.Error(err))
		return err
	}

	out := cmd.OutOrStdout()
	if in.ValidateOnly {
		fmt.Fprintf(out, "Pickup on %s validated\n", in.Date)
		return nil
	}
	fmt.Fprintf(out, "Pickup on %s scheduled, confirmation %s\n", in.Date, result.ConfirmationNumber)
	return nil
}

func pickupInput(profile *config.Profile, now time.Time) *orchestrator.PickupInput {
	in := &orchestrator.PickupInput{
		Date:           pickupFlags.date,
		ReadyTime:      pickupFlags.readyTime,
		CloseTime:      pickupFlags.closeTime,
		TotalWeight:    pickupFlags.weight,
		TotalPieces:    pickupFlags.pieces,
		BillingAccount: pickupFlags.account,
		Location:       pickupFlags.location,
		Instructions:   pickupFlags.instructions,
		ValidateOnly:   pickupFlags.validateOnly,
	}
	if in.Date == "" {
		in.Date = now.AddDate(0, 0, 1).Format("2006-01-02")
	}
	if in.ReadyTime == "" {
		in.ReadyTime = profile.Pickup.ReadyTime
	}
	if in.CloseTime == "" {
		in.CloseTime = profile.Pickup.CloseTime
	}
	return in
}

func runTrack(cmd *cobra.Command, args []string) error {
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

	app, err := newApp(ctx, cfg, logger, nil, false)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.orchestrator.TrackShipment(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", result.PIN)
	for _, e := range result.Events {
		when := "-"
		if !e.Timestamp.IsZero() {
			when = e.Timestamp.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "  %s  %-30s %s\n", when, e.Description, e.Location)
	}
	return nil
}
