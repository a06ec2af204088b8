package models

import (
	"time"
)

// DefaultUserID is used when a caller does not identify itself.
const DefaultUserID = "default"

// ItemType represents the type of item (bookmark or folder)
type ItemType string

const (
	ItemTypeBookmark ItemType = "bookmark"
	ItemTypeFolder   ItemType = "folder"
)

// Folder represents a bookmark folder. Folders nest through ParentID.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Bookmark represents a bookmark entry
type Bookmark struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Icon        *string    `json:"icon"` // icon URL or base64 data URI
	FolderID    *string    `json:"folder_id"`
	FolderName  *string    `json:"folder_name,omitempty"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Favorite    bool       `json:"favorite"`
	Summary     string     `json:"summary,omitempty"`
	Sentiment   string     `json:"sentiment,omitempty"`
	AnalyzedAt  *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the bookmark is soft-deleted.
func (b *Bookmark) Deleted() bool {
	return b.DeletedAt != nil
}

// HasTag reports whether the bookmark carries tag (case-insensitive).
func (b *Bookmark) HasTag(tag string) bool {
	tag = NormalizeTag(tag)
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Item represents a unified item that can be either a bookmark or a folder
// Used for displaying folder contents with both bookmarks and subfolders
type Item struct {
	Type        ItemType `json:"type"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`                  // Title for bookmarks, Name for folders
	URL         *string  `json:"url,omitempty"`         // Only for bookmarks
	Description *string  `json:"description,omitempty"` // Only for bookmarks
	Icon        *string  `json:"icon,omitempty"`        // Only for bookmarks
	ParentID    *string  `json:"parent_id"`             // folder_id for bookmarks, parent_id for folders
}

// ItemFromBookmark converts a bookmark to a folder-content item.
func ItemFromBookmark(b Bookmark) Item {
	url := b.URL
	desc := b.Description
	return Item{
		Type:        ItemTypeBookmark,
		ID:          b.ID,
		Name:        b.Title,
		URL:         &url,
		Description: &desc,
		Icon:        b.Icon,
		ParentID:    b.FolderID,
	}
}

// ItemFromFolder converts a folder to a folder-content item.
func ItemFromFolder(f Folder) Item {
	return Item{
		Type:     ItemTypeFolder,
		ID:       f.ID,
		Name:     f.Name,
		ParentID: f.ParentID,
	}
}

// BookmarkFilter narrows bookmark listings.
type BookmarkFilter struct {
	UserID         string
	Query          string
	FolderID       *string
	RootOnly       bool // bookmarks without a folder
	Tag            string
	Category       string
	FavoriteOnly   bool
	IncludeDeleted bool
	DeletedOnly    bool
	Limit          int
	Offset         int
}

// LabelCount is a derived category or tag with its usage count.
type LabelCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
