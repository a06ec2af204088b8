package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
)

func strPtr(s string) *string { return &s }

func TestFolderRowsNestsDepthFirst(t *testing.T) {
	folders := []models.Folder{
		{ID: "go", Name: "go", ParentID: strPtr("dev")},
		{ID: "news", Name: "News"},
		{ID: "dev", Name: "Dev"},
		{ID: "orphan", Name: "Orphan", ParentID: strPtr("missing")},
		{ID: "blogs", Name: "Blogs", ParentID: strPtr("go")},
	}

	rows := folderRows(folders)
	labels := make([]string, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, r.Label())
	}

	assert.Equal(t, []string{
		"All Bookmarks",
		"Dev",
		"  └─ go",
		"    └─ Blogs",
		"News",
		"Orphan",
	}, labels)
	assert.Nil(t, rows[0].ID)
	require.NotNil(t, rows[2].ID)
	assert.Equal(t, "go", *rows[2].ID)
}

func TestFolderChoicesSkipsSubtree(t *testing.T) {
	folders := []models.Folder{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B", ParentID: strPtr("a")},
		{ID: "c", Name: "C"},
	}

	options, ids := folderChoices(folders, "None (Root)", subtree(folders, "a"))
	assert.Equal(t, []string{"None (Root)", "C"}, options)
	require.Len(t, ids, 2)
	assert.Nil(t, ids[0])
	assert.Equal(t, 1, choiceIndex(ids, strPtr("c")))
	assert.Equal(t, 0, choiceIndex(ids, strPtr("a")))
	assert.Equal(t, 0, choiceIndex(ids, nil))
}

func TestFilterItems(t *testing.T) {
	items := []models.Item{
		models.ItemFromFolder(models.Folder{ID: "f", Name: "Golang"}),
		models.ItemFromBookmark(models.Bookmark{ID: "1", Title: "Blog", URL: "https://go.dev/blog"}),
		models.ItemFromBookmark(models.Bookmark{ID: "2", Title: "News", URL: "https://news.example", Description: "daily GO digest"}),
		models.ItemFromBookmark(models.Bookmark{ID: "3", Title: "Rust", URL: "https://rust-lang.org"}),
	}

	got := filterItems(items, " go ")
	ids := make([]string, 0, len(got))
	for _, item := range got {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"f", "1", "2"}, ids)
	assert.Empty(t, filterItems(items, "python"))
}

func TestSplitTagsAndCountText(t *testing.T) {
	assert.Equal(t, []string{"go", "web dev"}, splitTags(" go, ,web dev,"))
	assert.Empty(t, splitTags(""))

	assert.Equal(t, " [::b]0[::r] items", countText(nil))
	items := []models.Item{
		models.ItemFromFolder(models.Folder{ID: "f"}),
		models.ItemFromBookmark(models.Bookmark{ID: "b"}),
	}
	assert.Equal(t, " [::b]2[::r] items (1 bookmarks, 1 folders)", countText(items))
	assert.Equal(t, " [::b]1[::r] items", countText(items[1:]))
}

func TestBookmarkDetails(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	analyzed := now.Add(-2 * time.Hour)
	b := &models.Bookmark{
		Title:      "Go [Blog]",
		URL:        "https://go.dev/blog",
		Category:   "Programming",
		Tags:       []string{"go", "blog"},
		Favorite:   true,
		Summary:    "Official Go blog.",
		AnalyzedAt: &analyzed,
		CreatedAt:  now.Add(-72 * time.Hour),
		UpdatedAt:  now.Add(-72 * time.Hour),
	}

	text := bookmarkDetails(b, "Dev", now)
	assert.Contains(t, text, "★ Go [Blog[]")
	assert.Contains(t, text, "[::b]Folder:[::-]\nDev")
	assert.Contains(t, text, "#go #blog")
	assert.Contains(t, text, "[::b]Analyzed:[::-]\n2 hours ago")
	assert.Contains(t, text, "[::b]Added:[::-]\n3 days ago")
	assert.NotContains(t, text, "Updated")
	assert.NotContains(t, text, "Description")

	root := bookmarkDetails(&models.Bookmark{Title: "x", CreatedAt: now}, "", now)
	assert.Contains(t, root, "[::b]Folder:[::-]\n/")
}

func TestDashboardText(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	d := &service.Dashboard{
		Counts:        service.DashboardCounts{Bookmarks: 1200, Favorites: 3, Folders: 4, UnreadNotifications: 2},
		TopCategories: []models.LabelCount{{Name: "Programming", Count: 7}},
		Recent:        []models.Bookmark{{Title: "Go", CreatedAt: now.Add(-10 * time.Minute)}},
	}

	text := dashboardText(d, now)
	assert.Contains(t, text, "1,200")
	assert.Contains(t, text, "Top categories")
	assert.Contains(t, text, "Programming (7)")
	assert.NotContains(t, text, "Top tags")
	assert.Contains(t, text, "10 minutes ago")
}
