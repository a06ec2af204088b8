package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/repository"
	"github.com/dastanaron/bookaimark/internal/service"
	"github.com/dastanaron/bookaimark/internal/testsupport"
)

// limitedBookmarks lets allow more creates through, then fails with disk full.
// A negative allow means no limit.
type limitedBookmarks struct {
	repository.BookmarkRepository
	mu    sync.Mutex
	allow int
}

func (b *limitedBookmarks) setAllow(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allow = n
}

func (b *limitedBookmarks) Create(ctx context.Context, bm *models.Bookmark) error {
	b.mu.Lock()
	if b.allow == 0 {
		b.mu.Unlock()
		return errors.New("disk full")
	}
	if b.allow > 0 {
		b.allow--
	}
	b.mu.Unlock()
	return b.BookmarkRepository.Create(ctx, bm)
}

type limitedRepo struct {
	repository.Repository
	bookmarks *limitedBookmarks
}

func (r *limitedRepo) Bookmarks() repository.BookmarkRepository { return r.bookmarks }

func seedPlaybook(t *testing.T, svc *service.Services, author string, price int64) *models.Playbook {
	t.Helper()
	ctx := context.Background()
	folder, err := svc.Folders.Create(ctx, author, service.FolderInput{Name: "Go"})
	require.NoError(t, err)
	first, err := svc.Bookmarks.Create(ctx, author, service.BookmarkInput{Title: "Tour", URL: "https://go.dev/tour", Category: "Go", Tags: []string{"go"}}, service.CreateOptions{})
	require.NoError(t, err)
	_, err = svc.Bookmarks.Create(ctx, author, service.BookmarkInput{Title: "Spec", URL: "https://go.dev/ref/spec", Category: "Go", FolderID: &folder.ID}, service.CreateOptions{})
	require.NoError(t, err)
	_, err = svc.Bookmarks.Create(ctx, author, service.BookmarkInput{Title: "Tour again", URL: "https://go.dev/tour", FolderID: &folder.ID}, service.CreateOptions{})
	require.NoError(t, err)

	p, err := svc.Playbooks.Create(ctx, author, service.PlaybookInput{
		Title:       "Learning  Go",
		Tags:        []string{"Go", "Beginner"},
		PriceCents:  price,
		BookmarkIDs: []string{first.ID},
		FolderID:    &folder.ID,
	})
	require.NoError(t, err)
	return p
}

func TestPlaybookCreateSnapshotsItems(t *testing.T) {
	svc, _ := newServices(t)
	p := seedPlaybook(t, svc, "alice", 0)

	assert.Equal(t, "Learning Go", p.Title)
	assert.Equal(t, models.PlaybookDraft, p.Status)
	assert.Equal(t, "Go", p.Category)
	assert.Equal(t, []string{"go", "beginner"}, p.Tags)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "https://go.dev/tour", p.Items[0].URL)
	assert.Equal(t, "https://go.dev/ref/spec", p.Items[1].URL)

	_, err := svc.Playbooks.Create(context.Background(), "alice", service.PlaybookInput{Title: "x", BookmarkIDs: []string{"missing"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Playbooks.Create(context.Background(), "alice", service.PlaybookInput{Title: " "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Playbooks.Create(context.Background(), "alice", service.PlaybookInput{Title: "x", PriceCents: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPlaybookDraftsHiddenFromOthers(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	p := seedPlaybook(t, svc, "alice", 0)

	_, err := svc.Playbooks.Get(ctx, "bob", p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	market, err := svc.Playbooks.List(ctx, "bob", service.PlaybookQuery{})
	require.NoError(t, err)
	assert.Empty(t, market)

	mine, err := svc.Playbooks.List(ctx, "alice", service.PlaybookQuery{Mine: true})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.Playbooks.Publish(ctx, "bob", p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	published, err := svc.Playbooks.Publish(ctx, "alice", p.ID)
	require.NoError(t, err)
	assert.True(t, published.Published())

	market, err = svc.Playbooks.List(ctx, "bob", service.PlaybookQuery{Query: "learning"})
	require.NoError(t, err)
	assert.Len(t, market, 1)

	_, err = svc.Playbooks.Update(ctx, "bob", p.ID, service.PlaybookPatch{Title: ptr("mine now")})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.ErrorIs(t, svc.Playbooks.Delete(ctx, "bob", p.ID), apperr.ErrForbidden)

	draft, err := svc.Playbooks.Unpublish(ctx, "alice", p.ID)
	require.NoError(t, err)
	assert.False(t, draft.Published())
}

func TestPlaybookPublishNeedsItems(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	empty, err := svc.Playbooks.Create(ctx, "alice", service.PlaybookInput{Title: "Empty"})
	require.NoError(t, err)

	_, err = svc.Playbooks.Publish(ctx, "alice", empty.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPlaybookAcquireCopiesItemsAndNotifies(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	p := seedPlaybook(t, svc, "alice", 499)
	_, err := svc.Playbooks.Publish(ctx, "alice", p.ID)
	require.NoError(t, err)

	_, err = svc.Bookmarks.Create(ctx, "bob", service.BookmarkInput{URL: "https://go.dev/tour"}, service.CreateOptions{})
	require.NoError(t, err)

	result, err := svc.Playbooks.Acquire(ctx, "bob", p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(499), result.Purchase.PriceCents)
	assert.Equal(t, "Learning Go", result.Folder.Name)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	copied, err := svc.Bookmarks.List(ctx, models.BookmarkFilter{UserID: "bob", FolderID: &result.Folder.ID})
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.Equal(t, "https://go.dev/ref/spec", copied[0].URL)

	got, err := svc.Playbooks.Get(ctx, "bob", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Acquisitions)

	inbox, err := svc.Notifications.List(ctx, "alice", true)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationPlaybookAcquired, inbox[0].Kind)
	assert.True(t, strings.HasSuffix(inbox[0].Message, "for $4.99"), inbox[0].Message)

	_, err = svc.Playbooks.Acquire(ctx, "bob", p.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = svc.Playbooks.Acquire(ctx, "alice", p.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	purchases, err := svc.Playbooks.Purchases(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, purchases, 1)
}

func TestPlaybookLikeAndComments(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	p := seedPlaybook(t, svc, "alice", 0)

	_, err := svc.Playbooks.Like(ctx, "alice", p.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict, "drafts cannot be liked")

	_, err = svc.Playbooks.Publish(ctx, "alice", p.ID)
	require.NoError(t, err)

	liked, err := svc.Playbooks.Like(ctx, "bob", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.Likes)

	_, err = svc.Playbooks.AddComment(ctx, "bob", p.ID, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	c, err := svc.Playbooks.AddComment(ctx, "bob", p.ID, "Great list")
	require.NoError(t, err)
	_, err = svc.Playbooks.AddComment(ctx, "alice", p.ID, "Thanks")
	require.NoError(t, err)

	comments, err := svc.Playbooks.Comments(ctx, "carol", p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "Great list", comments[0].Body)

	inbox, err := svc.Notifications.List(ctx, "alice", false)
	require.NoError(t, err)
	kinds := make([]models.NotificationKind, 0, len(inbox))
	for _, n := range inbox {
		kinds = append(kinds, n.Kind)
	}
	assert.ElementsMatch(t, []models.NotificationKind{models.NotificationPlaybookLiked, models.NotificationPlaybookComment}, kinds)

	assert.ErrorIs(t, svc.Playbooks.DeleteComment(ctx, "alice", c.ID), apperr.ErrForbidden)
	require.NoError(t, svc.Playbooks.DeleteComment(ctx, "bob", c.ID))
	assert.ErrorIs(t, svc.Playbooks.DeleteComment(ctx, "bob", c.ID), apperr.ErrNotFound)

	require.NoError(t, svc.Playbooks.Delete(ctx, "alice", p.ID))
	_, err = svc.Playbooks.Comments(ctx, "alice", p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPlaybookConcurrentLikesAreCounted(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()
	p := seedPlaybook(t, svc, "alice", 0)
	_, err := svc.Playbooks.Publish(ctx, "alice", p.ID)
	require.NoError(t, err)

	const readers = 30
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Playbooks.Like(ctx, fmt.Sprintf("reader-%d", i), p.ID)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := svc.Playbooks.Get(ctx, "alice", p.ID)
	require.NoError(t, err)
	assert.Equal(t, readers, got.Likes)

	// Editing the playbook keeps the counter.
	title := "Learning Go, 2nd edition"
	edited, err := svc.Playbooks.Update(ctx, "alice", p.ID, service.PlaybookPatch{Title: &title})
	require.NoError(t, err)
	got, err = svc.Playbooks.Get(ctx, "alice", edited.ID)
	require.NoError(t, err)
	assert.Equal(t, readers, got.Likes)
}

func TestPlaybookAcquireFailureLeavesNothingBehind(t *testing.T) {
	bookmarks := &limitedBookmarks{allow: -1}
	base := testsupport.NewRepository(t)
	bookmarks.BookmarkRepository = base.Bookmarks()
	svc := service.New(&limitedRepo{Repository: base, bookmarks: bookmarks}, service.Options{
		Logger: logging.NewNop(),
		Now:    testsupport.NewClock().Now,
	})
	ctx := context.Background()
	p := seedPlaybook(t, svc, "alice", 0)
	_, err := svc.Playbooks.Publish(ctx, "alice", p.ID)
	require.NoError(t, err)

	bookmarks.setAllow(1)
	_, err = svc.Playbooks.Acquire(ctx, "bob", p.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotErrorIs(t, err, apperr.ErrConflict)

	purchases, err := svc.Playbooks.Purchases(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, purchases)
	left, err := svc.Bookmarks.List(ctx, models.BookmarkFilter{UserID: "bob", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, left)
	folders, err := svc.Folders.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, folders)
	got, err := svc.Playbooks.Get(ctx, "bob", p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Acquisitions)

	bookmarks.setAllow(-1)
	result, err := svc.Playbooks.Acquire(ctx, "bob", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	got, err = svc.Playbooks.Get(ctx, "bob", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Acquisitions)
}
