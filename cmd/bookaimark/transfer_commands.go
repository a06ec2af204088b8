package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dastanaron/bookaimark/internal/commands"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "import <bookmarks.html>",
		Short: "Import a Netscape bookmark file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			report, err := commands.NewImportCommand(app.svc, app.logger).Execute(cmd.Context(), ctx.userID(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d new, %d updated, %d skipped, %d folders\n",
				report.Created, report.Updated, report.Skipped, report.Folders)
			for _, msg := range report.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the import report as JSON")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export bookmarks as Netscape HTML, JSON or PDF",
		Long:  "Export bookmarks. The format follows --format, or the file extension when the flag is empty.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			if format == "" {
				format = commands.FormatFromPath(args[0])
			}
			n, err := commands.NewExportCommand(app.svc, app.logger).Execute(cmd.Context(), ctx.userID(), args[0], format)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d bookmarks to %s\n", n, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "html, json or pdf")
	return cmd
}

func newDedupeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "dedupe",
		Aliases: []string{"clear-doubles"},
		Short:   "Remove duplicate bookmarks, keeping the oldest",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			report, err := commands.NewClearDoublesCommand(app.svc, app.logger).Execute(cmd.Context(), ctx.userID())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d bookmarks, removed %d duplicates\n", report.Scanned, len(report.Removed))
			for _, d := range report.Removed {
				fmt.Fprintf(out, "  %s %s\n", d.ID, d.URL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
