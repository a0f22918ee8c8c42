package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/config"
	applog "saldo/internal/log"
	gsheet "saldo/internal/sheets/google"
	"saldo/internal/worker"
)

var (
	configPath  string
	skipStartup bool
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "saldo-worker",
	Short:        "Mirror ledger events into a Google Sheet",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "optional config file (toml, yaml or json)")
	rootCmd.Flags().BoolVar(&skipStartup, "skip-startup-sync", false, "do not mirror existing transactions on start")
}

func run(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting saldo-worker")

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	// The worker only reads the store; events come from its own consumer.
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	bcfg.AMQPURL = ""
	store, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer store.Cleanup()

	sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(store.Store, sheetsClient)

	// On startup, mirror anything missed while the worker was down
	if !skipStartup {
		logger.Info("Performing startup sync...")
		if err := mirror.StartupSync(ctx); err != nil {
			logger.Error("Startup sync failed", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeEvents(gctx, mirror.HandleEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consume events: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return cli.GracefulShutdown(gctx, logger, cli.ShutdownTimeout, func(context.Context) error {
			return amqpClient.Close()
		})
	})
	return g.Wait()
}
