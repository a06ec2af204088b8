package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"
)

const (
	itemKeys   = "[::b]Tab[::r] switch  [::b]/[::r] search  [::b]a[::r] add  [::b]e[::r] edit  [::b]d[::r] del  [::b]f[::r] fav  [::b]i[::r] analyze  [::b]D[::r] dashboard  [::b]Enter[::r] open  [::b]q[::r] quit"
	folderKeys = "[::b]Tab[::r] switch  [::b]Enter[::r] select  [::b]a[::r] add folder  [::b]e[::r] edit folder  [::b]d[::r] del folder  [::b]q[::r] quit"
)

// folderItem is one row of the folder list. A nil ID is "All Bookmarks".
type folderItem struct {
	ID    *string
	Name  string
	Level int
}

// Label indents the name by nesting level.
func (f folderItem) Label() string {
	if f.Level <= 1 {
		return f.Name
	}
	return strings.Repeat("  ", f.Level-1) + "└─ " + f.Name
}

// folderRows flattens folders depth-first, siblings in name order.
func folderRows(folders []models.Folder) []folderItem {
	known := make(map[string]bool, len(folders))
	for _, f := range folders {
		known[f.ID] = true
	}
	children := make(map[string][]models.Folder)
	for _, f := range folders {
		parent := ""
		if f.ParentID != nil && known[*f.ParentID] {
			parent = *f.ParentID
		}
		children[parent] = append(children[parent], f)
	}

	rows := []folderItem{{Name: "All Bookmarks"}}
	seen := make(map[string]bool, len(folders))
	var walk func(parent string, level int)
	walk = func(parent string, level int) {
		list := children[parent]
		sortFolders(list)
		for _, f := range list {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			id := f.ID
			rows = append(rows, folderItem{ID: &id, Name: f.Name, Level: level})
			walk(f.ID, level+1)
		}
	}
	walk("", 1)
	return rows
}

func sortFolders(list []models.Folder) {
	sort.SliceStable(list, func(i, j int) bool {
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	})
}

// subtree returns id and every folder nested under it.
func subtree(folders []models.Folder, id string) map[string]bool {
	out := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, f := range folders {
			if f.ParentID != nil && out[*f.ParentID] && !out[f.ID] {
				out[f.ID] = true
				changed = true
			}
		}
	}
	return out
}

// filterItems keeps items whose name, URL or description contains text.
func filterItems(items []models.Item, text string) []models.Item {
	needle := strings.ToLower(strings.TrimSpace(text))
	filtered := []models.Item{}
	for _, item := range items {
		if matches(item.Name, needle) ||
			(item.URL != nil && matches(*item.URL, needle)) ||
			(item.Description != nil && matches(*item.Description, needle)) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func matches(s, needle string) bool {
	return strings.Contains(strings.ToLower(s), needle)
}

func splitTags(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func countText(items []models.Item) string {
	var bookmarks, folders int
	for _, item := range items {
		if item.Type == models.ItemTypeBookmark {
			bookmarks++
		} else {
			folders++
		}
	}
	switch {
	case len(items) == 0:
		return " [::b]0[::r] items"
	case folders > 0:
		return fmt.Sprintf(" [::b]%d[::r] items (%d bookmarks, %d folders)", len(items), bookmarks, folders)
	default:
		return fmt.Sprintf(" [::b]%d[::r] items", len(items))
	}
}

func orRoot(name, root string) string {
	if name == "" {
		return root
	}
	return name
}

func folderDetails(item *models.Item, parent string) string {
	return fmt.Sprintf("[::b]Type:[::-]\nFolder\n\n[::b]Name:[::-]\n%s\n\n[::b]Parent:[::-]\n%s",
		tview.Escape(item.Name), tview.Escape(orRoot(parent, "Root")))
}

func itemDetails(item *models.Item, folder string) string {
	var url, desc string
	if item.URL != nil {
		url = *item.URL
	}
	if item.Description != nil {
		desc = *item.Description
	}
	return fmt.Sprintf("[::b]Type:[::-]\nBookmark\n\n[::b]Title:[::-]\n%s\n\n[::b]URL:[::-]\n%s\n\n[::b]Description:[::-]\n%s\n\n[::b]Folder:[::-]\n%s",
		tview.Escape(item.Name), tview.Escape(url), tview.Escape(desc), tview.Escape(orRoot(folder, "/")))
}

func bookmarkDetails(b *models.Bookmark, folder string, now time.Time) string {
	var sb strings.Builder
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&sb, "[::b]%s:[::-]\n%s\n\n", label, tview.Escape(value))
	}

	title := b.Title
	if b.Favorite {
		title = "★ " + title
	}
	field("Title", title)
	field("URL", b.URL)
	field("Description", b.Description)
	field("Folder", orRoot(folder, "/"))
	field("Category", b.Category)
	if len(b.Tags) > 0 {
		field("Tags", "#"+strings.Join(b.Tags, " #"))
	}
	field("Summary", b.Summary)
	field("Sentiment", b.Sentiment)
	if b.AnalyzedAt != nil {
		field("Analyzed", humanize.RelTime(*b.AnalyzedAt, now, "ago", "from now"))
	}
	field("Added", humanize.RelTime(b.CreatedAt, now, "ago", "from now"))
	if b.UpdatedAt.After(b.CreatedAt) {
		field("Updated", humanize.RelTime(b.UpdatedAt, now, "ago", "from now"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func dashboardText(d *service.Dashboard, now time.Time) string {
	var sb strings.Builder
	c := d.Counts
	fmt.Fprintf(&sb, "[::b]Bookmarks:[::-] %s   [::b]Favorites:[::-] %s   [::b]Folders:[::-] %s\n",
		humanize.Comma(int64(c.Bookmarks)), humanize.Comma(int64(c.Favorites)), humanize.Comma(int64(c.Folders)))
	fmt.Fprintf(&sb, "[::b]Deleted:[::-] %s   [::b]Unread notifications:[::-] %s\n",
		humanize.Comma(int64(c.Deleted)), humanize.Comma(int64(c.UnreadNotifications)))

	labels := func(title string, list []models.LabelCount) {
		if len(list) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n[::b]%s[::-]\n", title)
		for _, l := range list {
			fmt.Fprintf(&sb, "  %s (%d)\n", tview.Escape(l.Name), l.Count)
		}
	}
	labels("Top categories", d.TopCategories)
	labels("Top tags", d.TopTags)

	if len(d.Recent) > 0 {
		sb.WriteString("\n[::b]Recently added[::-]\n")
		for _, b := range d.Recent {
			fmt.Fprintf(&sb, "  %s  [gray]%s[-]\n", tview.Escape(b.Title), humanize.RelTime(b.CreatedAt, now, "ago", "from now"))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
