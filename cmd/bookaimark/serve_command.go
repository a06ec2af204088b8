package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dastanaron/bookaimark/internal/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := ctx.open(runCtx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			serverCfg := app.cfg.Server
			if bind != "" {
				serverCfg.Bind = bind
			}

			server, err := api.New(api.Options{
				Config:     serverCfg,
				Services:   app.svc,
				Repository: app.repo,
				Analyzer:   app.analyzer,
				Favicons:   app.favicons,
				Logger:     app.logger,
			})
			if err != nil {
				return err
			}
			app.logger.Info("api starting", "bind", serverCfg.Bind, "storage", app.cfg.Storage.Driver)
			return server.ListenAndServe(runCtx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override the listen address (host:port)")
	return cmd
}
