package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dastanaron/bookaimark/internal/models"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// wantJSON reports whether output should be JSON: forced by flag, or
// whenever stdout is not a terminal.
func wantJSON(cmd *cobra.Command, force bool) bool {
	return force || !isTerminal(cmd.OutOrStdout())
}

func relTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func bookmarkRows(bookmarks []models.Bookmark) [][]string {
	rows := make([][]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		folder := ""
		if b.FolderName != nil {
			folder = *b.FolderName
		}
		title := b.Title
		if b.Favorite {
			title = "★ " + title
		}
		rows = append(rows, []string{
			truncate(title, 40),
			truncate(b.URL, 50),
			folder,
			b.Category,
			strings.Join(b.Tags, ", "),
			relTime(b.CreatedAt),
		})
	}
	return rows
}

func printBookmarks(cmd *cobra.Command, bookmarks []models.Bookmark, asJSON bool) error {
	if wantJSON(cmd, asJSON) {
		return writeJSON(cmd, bookmarks)
	}
	headers := []string{"Title", "URL", "Folder", "Category", "Tags", "Added"}
	_, err := io.WriteString(cmd.OutOrStdout(), renderTable(headers, bookmarkRows(bookmarks), nil)+"\n")
	return err
}
