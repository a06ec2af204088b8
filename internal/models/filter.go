package models

import "strings"

// Match reports whether b satisfies every criterion in f except paging.
// The JSON and memory stores filter with it; SQL stores translate the same
// criteria into WHERE clauses.
func (f BookmarkFilter) Match(b *Bookmark) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	switch {
	case f.DeletedOnly:
		if !b.Deleted() {
			return false
		}
	case !f.IncludeDeleted:
		if b.Deleted() {
			return false
		}
	}
	if f.RootOnly && b.FolderID != nil {
		return false
	}
	if f.FolderID != nil && (b.FolderID == nil || *b.FolderID != *f.FolderID) {
		return false
	}
	if f.FavoriteOnly && !b.Favorite {
		return false
	}
	if f.Category != "" && !strings.EqualFold(b.Category, f.Category) {
		return false
	}
	if f.Tag != "" && !b.HasTag(f.Tag) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(b.Title), q) &&
			!strings.Contains(strings.ToLower(b.URL), q) &&
			!strings.Contains(strings.ToLower(b.Description), q) &&
			!b.HasTag(q) {
			return false
		}
	}
	return true
}

// Page applies Offset and Limit to n results and returns the [start, end) bounds.
func (f BookmarkFilter) Page(n int) (int, int) {
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if f.Limit > 0 && start+f.Limit < n {
		end = start + f.Limit
	}
	return start, end
}

// Match reports whether p satisfies the playbook filter.
func (f PlaybookFilter) Match(p *Playbook) bool {
	if f.UserID != "" && p.UserID != f.UserID {
		return false
	}
	if f.PublishedOnly && !p.Published() {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	return true
}
