package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dastanaron/bookaimark/internal/commands"
	"github.com/dastanaron/bookaimark/internal/service"
)

func newPlaybookCommand(ctx *commandContext) *cobra.Command {
	playbookCmd := &cobra.Command{
		Use:   "playbook",
		Short: "Manage playbooks",
	}

	playbookCmd.AddCommand(newPlaybookListCommand(ctx))
	playbookCmd.AddCommand(newPlaybookExportCommand(ctx))
	playbookCmd.AddCommand(newPlaybookImportCommand(ctx))
	return playbookCmd
}

func newPlaybookListCommand(ctx *commandContext) *cobra.Command {
	var (
		q      service.PlaybookQuery
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List marketplace playbooks (or your own with --mine)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			playbooks, err := app.svc.Playbooks.List(cmd.Context(), ctx.userID(), q)
			if err != nil {
				return err
			}
			if wantJSON(cmd, asJSON) {
				return writeJSON(cmd, playbooks)
			}
			rows := make([][]string, 0, len(playbooks))
			for _, p := range playbooks {
				rows = append(rows, []string{
					p.ID,
					truncate(p.Title, 40),
					p.Category,
					string(p.Status),
					strconv.Itoa(len(p.Items)),
					strconv.Itoa(p.Likes),
					fmt.Sprintf("%.2f", float64(p.PriceCents)/100),
				})
			}
			headers := []string{"ID", "Title", "Category", "Status", "Items", "Likes", "Price"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}
			_, err = io.WriteString(cmd.OutOrStdout(), renderTable(headers, rows, aligns)+"\n")
			return err
		},
	}

	cmd.Flags().BoolVar(&q.Mine, "mine", false, "List your own playbooks, drafts included")
	cmd.Flags().StringVarP(&q.Query, "query", "q", "", "Search title and description")
	cmd.Flags().StringVar(&q.Category, "category", "", "Only playbooks in this category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	return cmd
}

func newPlaybookExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <playbook-id> <file.yaml>",
		Short: "Write a playbook as a YAML bundle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			bundles := commands.NewPlaybookBundleCommand(app.svc, app.logger)
			if err := bundles.ExportFile(cmd.Context(), ctx.userID(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote playbook bundle to %s\n", args[1])
			return nil
		},
	}
}

func newPlaybookImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create a draft playbook from a YAML bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			bundles := commands.NewPlaybookBundleCommand(app.svc, app.logger)
			p, err := bundles.ImportFile(cmd.Context(), ctx.userID(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created playbook %s (%s) with %d items\n", p.ID, p.Title, len(p.Items))
			return nil
		},
	}
}
