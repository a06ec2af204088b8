package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
)

// Export formats.
const (
	FormatHTML = "html"
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

// FormatFromPath guesses the export format from a file extension, falling
// back to HTML.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".pdf":
		return FormatPDF
	default:
		return FormatHTML
	}
}

// Snapshot is the JSON export document.
type Snapshot struct {
	ExportedAt time.Time         `json:"exported_at"`
	Folders    []models.Folder   `json:"folders"`
	Bookmarks  []models.Bookmark `json:"bookmarks"`
}

// ExportCommand handles bookmark export to HTML, JSON and PDF
type ExportCommand struct {
	svc    *service.Services
	logger *slog.Logger
	now    func() time.Time
}

// NewExportCommand creates a new export command
func NewExportCommand(svc *service.Services, logger *slog.Logger) *ExportCommand {
	return &ExportCommand{
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "export"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Execute exports bookmarks to filePath. An empty format is derived from the
// file extension. It returns the number of exported bookmarks.
func (c *ExportCommand) Execute(ctx context.Context, userID, filePath, format string) (int, error) {
	if format == "" {
		format = FormatFromPath(filePath)
	}
	if err := checkFormat(format); err != nil {
		return 0, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("cannot create file: %w", err)
	}

	n, err := c.Write(ctx, userID, file, format)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close export file: %w", closeErr)
	}
	if err != nil {
		return n, err
	}
	c.logger.Info("bookmarks exported", "user_id", userID, "count", n, "path", filePath, "format", format)
	return n, nil
}

// Write renders the user's live bookmarks to w in format.
func (c *ExportCommand) Write(ctx context.Context, userID string, w io.Writer, format string) (int, error) {
	if err := checkFormat(format); err != nil {
		return 0, err
	}

	folders, err := c.svc.Folders.List(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get folders: %w", err)
	}
	bookmarks, err := c.svc.Bookmarks.ListAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	tree := newFolderTree(folders, bookmarks)
	switch format {
	case FormatJSON:
		err = writeJSON(w, Snapshot{ExportedAt: c.now(), Folders: folders, Bookmarks: bookmarks})
	case FormatPDF:
		err = writePDF(w, tree, c.now())
	default:
		err = writeNetscape(w, tree)
	}
	if err != nil {
		return 0, err
	}
	return len(bookmarks), nil
}

func checkFormat(format string) error {
	switch format {
	case FormatHTML, FormatJSON, FormatPDF:
		return nil
	}
	return apperr.Validation("export", fmt.Sprintf("unsupported format %q", format))
}

// folderTree indexes folders and bookmarks by parent. The empty key holds
// the top level.
type folderTree struct {
	children  map[string][]models.Folder
	bookmarks map[string][]models.Bookmark
}

func newFolderTree(folders []models.Folder, bookmarks []models.Bookmark) *folderTree {
	known := make(map[string]bool, len(folders))
	for _, f := range folders {
		known[f.ID] = true
	}

	t := &folderTree{
		children:  make(map[string][]models.Folder),
		bookmarks: make(map[string][]models.Bookmark),
	}
	for _, f := range folders {
		parent := ""
		if f.ParentID != nil && known[*f.ParentID] {
			parent = *f.ParentID
		}
		t.children[parent] = append(t.children[parent], f)
	}
	for _, b := range bookmarks {
		parent := ""
		if b.FolderID != nil && known[*b.FolderID] {
			parent = *b.FolderID
		}
		t.bookmarks[parent] = append(t.bookmarks[parent], b)
	}

	// Sort by name
	for _, list := range t.children {
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
		})
	}
	for _, list := range t.bookmarks {
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Title) < strings.ToLower(list[j].Title)
		})
	}
	return t
}

// walk visits folders depth-first, calling enter before a folder's contents
// and leave after them.
func (t *folderTree) walk(parent string, depth int, visit func(b models.Bookmark, depth int), enter func(f models.Folder, depth int), leave func(depth int)) {
	for _, b := range t.bookmarks[parent] {
		visit(b, depth)
	}
	for _, f := range t.children[parent] {
		enter(f, depth)
		t.walk(f.ID, depth+1, visit, enter, leave)
		if leave != nil {
			leave(depth)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// errWriter remembers the first write error so the HTML writer can stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func writeNetscape(w io.Writer, tree *folderTree) error {
	out := &errWriter{w: w}

	// Write HTML header
	out.printf("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	out.printf("<!-- This is an automatically generated file. -->\n")
	out.printf("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	out.printf("<TITLE>Bookmarks</TITLE>\n")
	out.printf("<H1>Bookmarks</H1>\n")
	out.printf("<DL><p>\n")

	indent := func(depth int) string { return strings.Repeat("    ", depth+1) }
	tree.walk("", 0,
		func(b models.Bookmark, depth int) { writeBookmark(out, indent(depth), &b) },
		func(f models.Folder, depth int) {
			out.printf("%s<DT><H3 ADD_DATE=\"%d\">%s</H3>\n", indent(depth), unixOrZero(f.CreatedAt), html.EscapeString(f.Name))
			out.printf("%s<DL><p>\n", indent(depth))
		},
		func(depth int) { out.printf("%s</DL><p>\n", indent(depth)) },
	)

	// Write HTML footer
	out.printf("</DL><p>\n")
	if out.err != nil {
		return fmt.Errorf("write html export: %w", out.err)
	}
	return nil
}

// writeBookmark writes a single bookmark
func writeBookmark(out *errWriter, indent string, b *models.Bookmark) {
	attrs := []string{
		htmlAttr("HREF", b.URL),
		htmlAttr("ADD_DATE", strconv.FormatInt(unixOrZero(b.CreatedAt), 10)),
	}
	if !b.UpdatedAt.IsZero() {
		attrs = append(attrs, htmlAttr("LAST_MODIFIED", strconv.FormatInt(b.UpdatedAt.Unix(), 10)))
	}
	if len(b.Tags) > 0 {
		attrs = append(attrs, htmlAttr("TAGS", strings.Join(b.Tags, ",")))
	}
	// Write bookmark with icon if available
	if b.Icon != nil && *b.Icon != "" {
		attrs = append(attrs, htmlAttr("ICON", *b.Icon))
	}
	out.printf("%s<DT><A %s>%s</A>\n", indent, strings.Join(attrs, " "), html.EscapeString(b.Title))
	if b.Description != "" {
		out.printf("%s<DD>%s\n", indent, html.EscapeString(b.Description))
	}
}

func htmlAttr(name, value string) string {
	return name + `="` + html.EscapeString(value) + `"`
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

const (
	pdfMargin     = 40.0
	pdfLineHeight = 14.0
	pdfIndent     = 14.0
)

// writePDF renders a printable reading list: folders as headings and
// bookmarks with their URL and category.
func writePDF(w io.Writer, tree *folderTree, generated time.Time) error {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetTitle("BookAIMark bookmarks", true)
	pdf.SetAuthor("BookAIMark", true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 24, "Bookmarks", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, pdfLineHeight, tr("Generated "+generated.Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.Ln(pdfLineHeight / 2)

	width := func(depth int) float64 {
		return pageW - 2*pdfMargin - float64(depth)*pdfIndent
	}

	tree.walk("", 0,
		func(b models.Bookmark, depth int) {
			x := pdfMargin + float64(depth)*pdfIndent
			pdf.SetX(x)
			pdf.SetTextColor(20, 20, 20)
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(width(depth), pdfLineHeight, tr(b.Title), "", "L", false)
			pdf.SetX(x)
			pdf.SetFont("Helvetica", "", 8)
			pdf.SetTextColor(40, 90, 170)
			pdf.MultiCell(width(depth), pdfLineHeight-3, tr(b.URL), "", "L", false)
			if meta := bookmarkMeta(b); meta != "" {
				pdf.SetX(x)
				pdf.SetTextColor(110, 110, 110)
				pdf.MultiCell(width(depth), pdfLineHeight-3, tr(meta), "", "L", false)
			}
			pdf.Ln(3)
		},
		func(f models.Folder, depth int) {
			pdf.Ln(4)
			pdf.SetX(pdfMargin + float64(depth)*pdfIndent)
			pdf.SetTextColor(0, 0, 0)
			pdf.SetFont("Helvetica", "B", 13-float64(min(depth, 3)))
			pdf.MultiCell(width(depth), pdfLineHeight+2, tr(f.Name), "B", "L", false)
			pdf.Ln(2)
		},
		nil,
	)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func bookmarkMeta(b models.Bookmark) string {
	var parts []string
	if b.Category != "" {
		parts = append(parts, b.Category)
	}
	if len(b.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(b.Tags, " #"))
	}
	if b.Favorite {
		parts = append(parts, "favorite")
	}
	return strings.Join(parts, "  |  ")
}
