package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/dastanaron/bookaimark/internal/ui"
)

func newTUICommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse bookmarks in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Console logs would draw over the screen; only the log file is kept.
			app, err := ctx.open(cmd.Context(), io.Discard)
			if err != nil {
				return err
			}
			return ui.NewApp(app.svc, ctx.userID(), app.logger).Run()
		},
	}
}
