package commands

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
)

// Duplicate describes a removed bookmark and the one kept in its place.
type Duplicate struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	KeptID string `json:"kept_id"`
}

// DedupeReport summarizes a duplicate removal run.
type DedupeReport struct {
	Scanned int         `json:"scanned"`
	Removed []Duplicate `json:"removed"`
	Errors  []string    `json:"errors,omitempty"`
}

// ClearDoublesCommand handles removal of duplicate bookmarks
type ClearDoublesCommand struct {
	svc    *service.Services
	logger *slog.Logger
}

// NewClearDoublesCommand creates a new clear doubles command
func NewClearDoublesCommand(svc *service.Services, logger *slog.Logger) *ClearDoublesCommand {
	return &ClearDoublesCommand{
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "dedupe"),
	}
}

// Execute removes duplicate bookmarks. Bookmarks are compared by normalized
// URL; the oldest one is kept and receives the tags of the removed copies.
func (c *ClearDoublesCommand) Execute(ctx context.Context, userID string) (*DedupeReport, error) {
	// Get all bookmarks
	allBookmarks, err := c.svc.Bookmarks.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	sort.SliceStable(allBookmarks, func(i, j int) bool {
		a, b := allBookmarks[i], allBookmarks[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	report := &DedupeReport{Scanned: len(allBookmarks), Removed: []Duplicate{}}
	keepers := make(map[string]*models.Bookmark) // URL -> bookmark to keep
	extraTags := make(map[string][]string)

	for i := range allBookmarks {
		bookmark := &allBookmarks[i]
		key := dedupeKey(bookmark.URL)
		if key == "" {
			continue // Skip bookmarks without URL
		}

		kept, exists := keepers[key]
		if !exists {
			// First occurrence of this URL - keep it
			keepers[key] = bookmark
			continue
		}

		// This is a duplicate
		if err := c.svc.Bookmarks.Delete(ctx, userID, bookmark.ID, true); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", bookmark.ID, err))
			continue
		}
		report.Removed = append(report.Removed, Duplicate{
			ID:     bookmark.ID,
			Title:  bookmark.Title,
			URL:    bookmark.URL,
			KeptID: kept.ID,
		})
		extraTags[kept.ID] = append(extraTags[kept.ID], bookmark.Tags...)
		c.logger.Debug("duplicate removed", "bookmark_id", bookmark.ID, "kept_id", kept.ID)
	}

	for _, kept := range keepers {
		extra, ok := extraTags[kept.ID]
		if !ok {
			continue
		}
		merged := models.MergeTags(kept.Tags, extra)
		if slices.Equal(merged, kept.Tags) {
			continue
		}
		if _, err := c.svc.Bookmarks.Update(ctx, userID, kept.ID, service.BookmarkPatch{Tags: merged}); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", kept.ID, err))
		}
	}

	c.logger.Info("duplicates removed", "user_id", userID, "scanned", report.Scanned, "removed", len(report.Removed))
	return report, nil
}

// dedupeKey folds the URL forms that point at the same page: scheme case,
// host case, a trailing slash and a fragment.
func dedupeKey(raw string) string {
	url, ok := models.NormalizeURL(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	if i := strings.IndexByte(url, '#'); i >= 0 {
		url = url[:i]
	}
	return strings.TrimSuffix(url, "/")
}
