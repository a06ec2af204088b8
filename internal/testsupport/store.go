package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/repository"
)

// NewRepository returns an empty memory repository closed at cleanup.
func NewRepository(t testing.TB) repository.Repository {
	t.Helper()
	repo := repository.NewMemoryRepository()
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// MustCreateBookmark stores b and fails the test on error.
func MustCreateBookmark(t testing.TB, repo repository.Repository, b models.Bookmark) *models.Bookmark {
	t.Helper()
	if b.UserID == "" {
		b.UserID = models.DefaultUserID
	}
	if err := repo.Bookmarks().Create(context.Background(), &b); err != nil {
		t.Fatalf("create bookmark: %v", err)
	}
	return &b
}

// MustCreateFolder stores a folder and fails the test on error.
func MustCreateFolder(t testing.TB, repo repository.Repository, userID, name string, parentID *string) *models.Folder {
	t.Helper()
	if userID == "" {
		userID = models.DefaultUserID
	}
	f := &models.Folder{UserID: userID, Name: name, ParentID: parentID}
	if err := repo.Folders().Create(context.Background(), f); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	return f
}

// Clock is a deterministic clock that advances by Step on every call.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewClock starts a clock at a fixed instant, stepping one second per call.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), Step: time.Second}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.Step)
	return now
}
