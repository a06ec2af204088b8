package repository

import (
	"context"
	"time"

	"github.com/dastanaron/bookaimark/internal/models"
)

// BookmarkRepository defines operations for bookmarks.
// Getters return nil, nil when the record does not exist.
type BookmarkRepository interface {
	List(ctx context.Context, filter models.BookmarkFilter) ([]models.Bookmark, error)
	GetByID(ctx context.Context, id string) (*models.Bookmark, error)
	// GetByURL ignores soft-deleted bookmarks.
	GetByURL(ctx context.Context, userID, url string) (*models.Bookmark, error)
	Create(ctx context.Context, b *models.Bookmark) error
	Update(ctx context.Context, b *models.Bookmark) error
	// Upsert creates a new bookmark if URL doesn't exist for the user, otherwise updates the existing one.
	// Returns true if created, false if updated.
	Upsert(ctx context.Context, b *models.Bookmark) (bool, error)
	// Delete removes the row permanently. Soft delete is an Update of DeletedAt.
	Delete(ctx context.Context, id string) error
}

// FolderRepository defines operations for folders.
type FolderRepository interface {
	List(ctx context.Context, userID string) ([]models.Folder, error)
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	Create(ctx context.Context, f *models.Folder) error
	Update(ctx context.Context, f *models.Folder) error
	// Delete removes the folder, detaches its bookmarks and moves its child
	// folders up to the deleted folder's parent.
	Delete(ctx context.Context, id string) error
	// Upsert returns the user's folder with name under parentID, creating it when missing.
	Upsert(ctx context.Context, userID, name string, parentID *string) (*models.Folder, error)
}

// PlaybookCounter names a playbook counter column.
type PlaybookCounter string

const (
	CounterLikes        PlaybookCounter = "likes"
	CounterAcquisitions PlaybookCounter = "acquisitions"
)

// PlaybookRepository defines operations for marketplace playbooks.
type PlaybookRepository interface {
	List(ctx context.Context, filter models.PlaybookFilter) ([]models.Playbook, error)
	GetByID(ctx context.Context, id string) (*models.Playbook, error)
	Create(ctx context.Context, p *models.Playbook) error
	// Update writes the editable fields. Counters are left as stored.
	Update(ctx context.Context, p *models.Playbook) error
	// Increment adds one to counter in place and returns the stored playbook,
	// or nil when it does not exist.
	Increment(ctx context.Context, id string, counter PlaybookCounter, at time.Time) (*models.Playbook, error)
	// Delete removes the playbook with its comments.
	Delete(ctx context.Context, id string) error
}

// CommentRepository defines operations for playbook comments.
type CommentRepository interface {
	ListByPlaybook(ctx context.Context, playbookID string) ([]models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Create(ctx context.Context, c *models.Comment) error
	Delete(ctx context.Context, id string) error
}

// NotificationRepository defines operations for the notification inbox.
type NotificationRepository interface {
	List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	Create(ctx context.Context, n *models.Notification) error
	Update(ctx context.Context, n *models.Notification) error
	Delete(ctx context.Context, id string) error
	// MarkAllRead marks every unread notification of the user and returns how many changed.
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// PurchaseRepository defines operations for playbook acquisitions.
type PurchaseRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Purchase, error)
	Find(ctx context.Context, userID, playbookID string) (*models.Purchase, error)
	Create(ctx context.Context, p *models.Purchase) error
}

// Repository combines all repositories
type Repository interface {
	Bookmarks() BookmarkRepository
	Folders() FolderRepository
	Playbooks() PlaybookRepository
	Comments() CommentRepository
	Notifications() NotificationRepository
	Purchases() PurchaseRepository
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
