package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"saldo/internal/cli"
	apphttp "saldo/internal/http"
	"saldo/internal/tabular"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := cli.SignalContext(cmd.Context())
		defer stop()

		a, err := bootstrap(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		uploads, err := tabular.NewUploadStore(a.cfg.UploadDir, a.cfg.MaxUploadBytes)
		if err != nil {
			return err
		}

		srv, err := apphttp.NewServer(":"+a.cfg.Port, apphttp.Deps{
			Services:          a.services,
			Uploads:           uploads,
			Logger:            a.logger,
			Ready:             a.backend.Ready,
			RequestsPerMinute: a.cfg.RateLimitPerMinute,
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.logger.Info("Starting saldo server",
				"port", a.cfg.Port,
				"backend", a.cfg.DataBackend,
				"events", a.backend.Publisher != nil)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return cli.GracefulShutdown(gctx, a.logger, cli.ShutdownTimeout, srv.Shutdown)
		})
		return g.Wait()
	},
}
