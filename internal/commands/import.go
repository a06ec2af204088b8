package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/parser"
	"github.com/dastanaron/bookaimark/internal/service"
)

// ImportReport summarizes an import run.
type ImportReport struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Folders int      `json:"folders"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportCommand handles bookmark import from HTML file
type ImportCommand struct {
	svc    *service.Services
	parser *parser.Parser
	logger *slog.Logger
}

// NewImportCommand creates a new import command
func NewImportCommand(svc *service.Services, logger *slog.Logger) *ImportCommand {
	return &ImportCommand{
		svc:    svc,
		parser: parser.NewParser(),
		logger: logging.NewComponentLogger(logger, "import"),
	}
}

// Execute imports bookmarks from HTML file
func (c *ImportCommand) Execute(ctx context.Context, userID, filePath string) (*ImportReport, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()
	return c.Import(ctx, userID, file)
}

// Import reads a Netscape bookmark file from r. Folders are matched by name
// under their parent and created when missing; bookmarks whose URL already
// exists are merged into the existing record.
func (c *ImportCommand) Import(ctx context.Context, userID string, r io.Reader) (*ImportReport, error) {
	entries, err := c.parser.ParseBookmarksHTML(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	report := &ImportReport{}
	folders := make(map[string]string)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		folderID, err := c.resolvePath(ctx, userID, e.Path, folders, report)
		if err != nil {
			return report, err
		}

		b := &models.Bookmark{
			UserID:      userID,
			Title:       e.Title,
			URL:         e.URL,
			Description: e.Description,
			Tags:        e.Tags,
			FolderID:    folderID,
			CreatedAt:   e.AddDate,
		}
		if e.Icon != "" {
			icon := e.Icon
			b.Icon = &icon
		}

		created, err := c.svc.Bookmarks.Upsert(ctx, b)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", e.URL, err))
			c.logger.Debug("bookmark skipped", "url", e.URL, "error", err)
			continue
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}

	c.logger.Info("import finished",
		"user_id", userID,
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"folders", report.Folders,
	)
	return report, nil
}

// resolvePath returns the folder ID for path, walking and creating each level.
func (c *ImportCommand) resolvePath(ctx context.Context, userID string, path []string, cache map[string]string, report *ImportReport) (*string, error) {
	var (
		parentID *string
		key      string
	)
	for _, name := range path {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key += "/" + name
		if id, ok := cache[key]; ok {
			parentID = &id
			continue
		}
		folder, err := c.svc.Folders.Upsert(ctx, userID, name, parentID)
		if err != nil {
			return nil, fmt.Errorf("import folder %q: %w", name, err)
		}
		cache[key] = folder.ID
		report.Folders++
		id := folder.ID
		parentID = &id
	}
	return parentID, nil
}
