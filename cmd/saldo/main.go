package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/config"
	applog "saldo/internal/log"
	"saldo/internal/services"
)

var configPath string

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "saldo",
	Short: "Personal ledger of income and outcome transactions",
	Long: `Saldo records income and outcome transactions grouped by category,
keeps the balance from going negative on single entries and imports
batches of transactions from CSV files or Google Sheets.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (toml, yaml or json)")
	rootCmd.AddCommand(serveCmd, balanceCmd, importCmd, importSheetCmd, migrateCmd)
}

// app is what every subcommand needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   *applog.Logger
	backend  *backend.BackendResult
	services *services.Services
}

func bootstrap(ctx context.Context, withEvents bool) (*app, error) {
	cfg, err := cli.LoadAndValidateConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !withEvents {
		bcfg.AMQPURL = ""
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		backend:  res,
		services: services.New(res.Store, res.Publisher, cfg.DefaultCategory),
	}, nil
}

func (a *app) close() {
	if err := a.backend.Cleanup(); err != nil {
		a.logger.Error("Failed to release backend", "error", err)
	}
}

// loadConfig is for subcommands that do not need a store.
func loadConfig() (*config.Config, error) {
	cfg, err := cli.LoadAndValidateConfig(configPath)
	if err != nil {
		return nil, err
	}
	cli.SetupLogger(cfg, applog.ComponentApp)
	return cfg, nil
}
