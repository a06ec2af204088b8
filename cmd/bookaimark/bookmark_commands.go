package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dastanaron/bookaimark/internal/analysis"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		query     string
		folderID  string
		tag       string
		category  string
		favorites bool
		deleted   bool
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List bookmarks",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			filter := models.BookmarkFilter{
				UserID:       ctx.userID(),
				Query:        query,
				Tag:          tag,
				Category:     category,
				FavoriteOnly: favorites,
				DeletedOnly:  deleted,
				Limit:        limit,
			}
			switch folderID {
			case "":
			case "root":
				filter.RootOnly = true
			default:
				filter.FolderID = &folderID
			}
			bookmarks, err := app.svc.Bookmarks.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printBookmarks(cmd, bookmarks, asJSON)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Search title, URL, description and tags")
	cmd.Flags().StringVar(&folderID, "folder", "", "Only bookmarks in this folder ID (root for unfiled)")
	cmd.Flags().StringVar(&tag, "tag", "", "Only bookmarks with this tag")
	cmd.Flags().StringVar(&category, "category", "", "Only bookmarks in this category")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Only favorites")
	cmd.Flags().BoolVar(&deleted, "deleted", false, "Show deleted bookmarks instead of live ones")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of bookmarks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	return cmd
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		in      service.BookmarkInput
		folder  string
		tags    []string
		noIcon  bool
		analyze bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			in.URL = args[0]
			in.Tags = tags
			if folder != "" {
				in.FolderID = &folder
			}
			b, err := app.svc.Bookmarks.Create(cmd.Context(), ctx.userID(), in, service.CreateOptions{
				ResolveIcon: !noIcon,
				Analyze:     analyze,
			})
			if err != nil {
				return err
			}
			return printBookmarks(cmd, []models.Bookmark{*b}, asJSON)
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Title (defaults to the URL host)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.Category, "category", "", "Category")
	cmd.Flags().StringVar(&folder, "folder", "", "Folder ID")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable or comma separated)")
	cmd.Flags().BoolVar(&in.Favorite, "favorite", false, "Mark as favorite")
	cmd.Flags().BoolVar(&noIcon, "no-icon", false, "Skip favicon resolution")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Run content analysis after saving")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	return cmd
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		pageURL string
		file    bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [bookmark-id]",
		Short: "Categorize, tag and summarize a bookmark or URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (pageURL == "") {
				return errors.New("pass either a bookmark ID or --url")
			}
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}

			var result analysis.Result
			if pageURL != "" {
				result, err = app.analyzer.Analyze(cmd.Context(), analysis.Input{URL: pageURL})
			} else {
				_, result, err = app.svc.Bookmarks.Analyze(cmd.Context(), ctx.userID(), args[0], file)
			}
			if err != nil {
				return err
			}
			return printAnalysis(cmd, result, asJSON)
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "Analyze a URL without saving it")
	cmd.Flags().BoolVar(&file, "file", false, "Move the bookmark into a folder named after its category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	return cmd
}

func printAnalysis(cmd *cobra.Command, r analysis.Result, asJSON bool) error {
	if wantJSON(cmd, asJSON) {
		return writeJSON(cmd, r)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Category:   %s\n", r.Category)
	fmt.Fprintf(out, "Tags:       %s\n", strings.Join(r.Tags, ", "))
	fmt.Fprintf(out, "Sentiment:  %s\n", r.Sentiment)
	fmt.Fprintf(out, "Confidence: %.2f\n", r.Confidence)
	fmt.Fprintf(out, "Summary:    %s\n", r.Summary)
	if r.Fallback {
		fmt.Fprintf(out, "(fallback result: %s)\n", r.Reason)
	}
	return nil
}

func newFaviconCommand(ctx *commandContext) *cobra.Command {
	var (
		pageURL string
		all     bool
		missing bool
	)

	cmd := &cobra.Command{
		Use:   "favicon [bookmark-id]",
		Short: "Resolve favicons for bookmarks or a URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openFor(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case pageURL != "":
				result, err := app.favicons.Resolve(cmd.Context(), pageURL)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (%s)\n", result.URL, result.Source)
			case all || missing:
				n, err := app.svc.Bookmarks.RefreshFavicons(cmd.Context(), ctx.userID(), missing)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Updated %d favicons\n", n)
			case len(args) == 1:
				b, err := app.svc.Bookmarks.RefreshFavicon(cmd.Context(), ctx.userID(), args[0])
				if err != nil {
					return err
				}
				if b.Icon != nil {
					fmt.Fprintln(out, truncate(*b.Icon, 120))
				}
			default:
				return errors.New("pass a bookmark ID, --all, --missing or --url")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "Resolve the icon of a URL without saving it")
	cmd.Flags().BoolVar(&all, "all", false, "Refresh the icon of every bookmark")
	cmd.Flags().BoolVar(&missing, "missing", false, "Refresh only bookmarks without an icon")
	return cmd
}
