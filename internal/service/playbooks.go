package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/repository"
)

const (
	maxCommentRunes     = 2000
	maxDescriptionRunes = 5000
	commentPreviewRunes = 120
)

// PlaybookInput creates a playbook. Items are snapshotted from the listed
// bookmarks, the folder's live bookmarks and any explicit items, in that
// order, de-duplicated by URL.
type PlaybookInput struct {
	Title       string
	Description string
	Category    string
	Tags        []string
	PriceCents  int64
	BookmarkIDs []string
	FolderID    *string
	Items       []models.PlaybookItem
}

// PlaybookPatch is a partial update. A non-nil BookmarkIDs replaces the items.
type PlaybookPatch struct {
	Title       *string
	Description *string
	Category    *string
	Tags        []string
	PriceCents  *int64
	BookmarkIDs []string
}

// PlaybookQuery selects marketplace listings. Mine lists the caller's own
// playbooks including drafts; otherwise only published ones are listed.
type PlaybookQuery struct {
	Mine     bool
	Query    string
	Category string
}

// AcquireResult reports what an acquisition copied.
type AcquireResult struct {
	Purchase models.Purchase `json:"purchase"`
	Folder   models.Folder   `json:"folder"`
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
}

// PlaybookService implements the playbook marketplace.
type PlaybookService struct {
	repo   repository.Repository
	notify *NotificationService
	logger *slog.Logger
	now    func() time.Time
}

// NewPlaybookService creates a new playbook service
func NewPlaybookService(repo repository.Repository, notify *NotificationService, opts Options) *PlaybookService {
	return &PlaybookService{
		repo:   repo,
		notify: notify,
		logger: logging.NewComponentLogger(opts.Logger, "playbooks"),
		now:    opts.clock(),
	}
}

// List returns marketplace listings for the caller.
func (s *PlaybookService) List(ctx context.Context, userID string, q PlaybookQuery) ([]models.Playbook, error) {
	filter := models.PlaybookFilter{Query: q.Query, Category: q.Category}
	if q.Mine {
		filter.UserID = userOrDefault(userID)
	} else {
		filter.PublishedOnly = true
	}
	return s.repo.Playbooks().List(ctx, filter)
}

// Get returns a playbook. Drafts are visible to their author only.
func (s *PlaybookService) Get(ctx context.Context, userID, id string) (*models.Playbook, error) {
	return s.visible(ctx, "get playbook", userID, id)
}

func (s *PlaybookService) visible(ctx context.Context, op, userID, id string) (*models.Playbook, error) {
	p, err := s.repo.Playbooks().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p == nil || (!p.Published() && p.UserID != userOrDefault(userID)) {
		return nil, apperr.NotFound(op, "playbook")
	}
	return p, nil
}

func (s *PlaybookService) owned(ctx context.Context, op, userID, id string) (*models.Playbook, error) {
	p, err := s.visible(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userOrDefault(userID) {
		return nil, apperr.Wrap(apperr.ErrForbidden, op, "only the author can change this playbook", nil)
	}
	return p, nil
}

// Create snapshots bookmarks into a new draft playbook.
func (s *PlaybookService) Create(ctx context.Context, userID string, in PlaybookInput) (*models.Playbook, error) {
	const op = "create playbook"
	userID = userOrDefault(userID)

	p := &models.Playbook{
		UserID:      userID,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Tags:        models.NormalizeTags(in.Tags, models.MaxTags),
		PriceCents:  in.PriceCents,
		Status:      models.PlaybookDraft,
	}
	var err error
	if p.Title, err = playbookTitle(op, in.Title); err != nil {
		return nil, err
	}
	if err := validatePlaybookFields(op, p); err != nil {
		return nil, err
	}

	sources, err := s.collect(ctx, op, userID, in.BookmarkIDs, in.FolderID)
	if err != nil {
		return nil, err
	}
	p.Items = snapshot(sources, in.Items)
	if p.Category == "" {
		p.Category = dominantCategory(sources)
	}

	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	if err := s.repo.Playbooks().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("playbook created", "playbook_id", p.ID, "items", len(p.Items))
	return p, nil
}

// Update edits an author's playbook.
func (s *PlaybookService) Update(ctx context.Context, userID, id string, patch PlaybookPatch) (*models.Playbook, error) {
	const op = "update playbook"
	p, err := s.owned(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		if p.Title, err = playbookTitle(op, *patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Tags != nil {
		p.Tags = models.NormalizeTags(patch.Tags, models.MaxTags)
	}
	if patch.PriceCents != nil {
		p.PriceCents = *patch.PriceCents
	}
	if err := validatePlaybookFields(op, p); err != nil {
		return nil, err
	}
	if patch.BookmarkIDs != nil {
		sources, err := s.collect(ctx, op, p.UserID, patch.BookmarkIDs, nil)
		if err != nil {
			return nil, err
		}
		p.Items = snapshot(sources, nil)
		if p.Published() && len(p.Items) == 0 {
			return nil, apperr.Validation(op, "a published playbook needs at least one item")
		}
	}
	p.UpdatedAt = s.now()
	if err := s.repo.Playbooks().Update(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Delete removes an author's playbook and its comments.
func (s *PlaybookService) Delete(ctx context.Context, userID, id string) error {
	p, err := s.owned(ctx, "delete playbook", userID, id)
	if err != nil {
		return err
	}
	return s.repo.Playbooks().Delete(ctx, p.ID)
}

// Publish lists the playbook in the marketplace.
func (s *PlaybookService) Publish(ctx context.Context, userID, id string) (*models.Playbook, error) {
	const op = "publish playbook"
	p, err := s.owned(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if len(p.Items) == 0 {
		return nil, apperr.Validation(op, "a playbook needs at least one item to be published")
	}
	return s.setStatus(ctx, op, p, models.PlaybookPublished)
}

// Unpublish returns the playbook to draft.
func (s *PlaybookService) Unpublish(ctx context.Context, userID, id string) (*models.Playbook, error) {
	const op = "unpublish playbook"
	p, err := s.owned(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, op, p, models.PlaybookDraft)
}

func (s *PlaybookService) setStatus(ctx context.Context, op string, p *models.Playbook, status models.PlaybookStatus) (*models.Playbook, error) {
	if p.Status == status {
		return p, nil
	}
	p.Status = status
	p.UpdatedAt = s.now()
	if err := s.repo.Playbooks().Update(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Like increments the like counter and notifies the author.
func (s *PlaybookService) Like(ctx context.Context, userID, id string) (*models.Playbook, error) {
	const op = "like playbook"
	userID = userOrDefault(userID)
	p, err := s.visible(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if !p.Published() {
		return nil, apperr.Wrap(apperr.ErrConflict, op, "only published playbooks can be liked", nil)
	}
	p, err = s.repo.Playbooks().Increment(ctx, p.ID, repository.CounterLikes, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p == nil {
		return nil, apperr.NotFound(op, "playbook")
	}
	if userID != p.UserID {
		s.notify.Notify(ctx, models.Notification{
			UserID:  p.UserID,
			Kind:    models.NotificationPlaybookLiked,
			Title:   "Playbook liked",
			Message: fmt.Sprintf("%s liked %q", userID, p.Title),
			Link:    playbookLink(p.ID),
		})
	}
	return p, nil
}

// Acquire records a purchase at the listed price and copies the playbook's
// items into a new root folder named after it. URLs the buyer already has
// are skipped.
func (s *PlaybookService) Acquire(ctx context.Context, userID, id string) (*AcquireResult, error) {
	const op = "acquire playbook"
	userID = userOrDefault(userID)
	p, err := s.visible(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if p.UserID == userID {
		return nil, apperr.Wrap(apperr.ErrConflict, op, "authors cannot acquire their own playbook", nil)
	}
	if !p.Published() {
		return nil, apperr.NotFound(op, "playbook")
	}
	existing, err := s.repo.Purchases().Find(ctx, userID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, apperr.Wrap(apperr.ErrConflict, op, "playbook already acquired", nil)
	}

	now := s.now()
	result := &AcquireResult{
		Purchase: models.Purchase{PlaybookID: p.ID, UserID: userID, PriceCents: p.PriceCents, CreatedAt: now},
		Folder:   models.Folder{UserID: userID, Name: p.Title, CreatedAt: now},
	}
	if err := s.repo.Folders().Create(ctx, &result.Folder); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var created []string
	fail := func(err error) (*AcquireResult, error) {
		s.undoAcquire(ctx, result.Folder.ID, created)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, item := range p.Items {
		url, ok := models.NormalizeURL(item.URL)
		if !ok {
			result.Skipped++
			continue
		}
		have, err := s.repo.Bookmarks().GetByURL(ctx, userID, url)
		if err != nil {
			return fail(err)
		}
		if have != nil {
			result.Skipped++
			continue
		}
		folderID := result.Folder.ID
		b := &models.Bookmark{
			UserID:      userID,
			Title:       defaultTitle(item.Title, url),
			URL:         url,
			Description: item.Description,
			FolderID:    &folderID,
			Tags:        models.NormalizeTags(item.Tags, models.MaxTags),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Bookmarks().Create(ctx, b); err != nil {
			return fail(err)
		}
		created = append(created, b.ID)
		result.Imported++
	}

	// The purchase goes in last so a failed copy can be retried.
	if err := s.repo.Purchases().Create(ctx, &result.Purchase); err != nil {
		return fail(err)
	}
	if updated, err := s.repo.Playbooks().Increment(ctx, p.ID, repository.CounterAcquisitions, now); err != nil {
		s.logger.Warn("acquisition counter not updated", "playbook_id", p.ID, "error", err)
	} else if updated != nil {
		p = updated
	}

	message := fmt.Sprintf("%s acquired %q", userID, p.Title)
	if !p.Free() {
		message += " for " + formatPrice(p.PriceCents)
	}
	s.notify.Notify(ctx, models.Notification{
		UserID:  p.UserID,
		Kind:    models.NotificationPlaybookAcquired,
		Title:   "Playbook acquired",
		Message: message,
		Link:    playbookLink(p.ID),
	})
	s.logger.Info("playbook acquired", "playbook_id", p.ID, "user_id", userID, "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// undoAcquire removes the folder and bookmarks a failed acquisition created.
func (s *PlaybookService) undoAcquire(ctx context.Context, folderID string, bookmarkIDs []string) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range bookmarkIDs {
		if err := s.repo.Bookmarks().Delete(ctx, id); err != nil {
			s.logger.Warn("acquire cleanup failed", "bookmark_id", id, "error", err)
		}
	}
	if err := s.repo.Folders().Delete(ctx, folderID); err != nil {
		s.logger.Warn("acquire cleanup failed", "folder_id", folderID, "error", err)
	}
}

// Purchases lists the user's acquisitions.
func (s *PlaybookService) Purchases(ctx context.Context, userID string) ([]models.Purchase, error) {
	return s.repo.Purchases().ListByUser(ctx, userOrDefault(userID))
}

// Comments lists the comments of a visible playbook, oldest first.
func (s *PlaybookService) Comments(ctx context.Context, userID, playbookID string) ([]models.Comment, error) {
	p, err := s.visible(ctx, "list comments", userID, playbookID)
	if err != nil {
		return nil, err
	}
	return s.repo.Comments().ListByPlaybook(ctx, p.ID)
}

// AddComment posts a comment and notifies the author.
func (s *PlaybookService) AddComment(ctx context.Context, userID, playbookID, body string) (*models.Comment, error) {
	const op = "add comment"
	userID = userOrDefault(userID)
	p, err := s.visible(ctx, op, userID, playbookID)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation(op, "body is required")
	}
	if utf8.RuneCountInString(body) > maxCommentRunes {
		return nil, apperr.Validation(op, fmt.Sprintf("body must be at most %d characters", maxCommentRunes))
	}

	c := &models.Comment{PlaybookID: p.ID, UserID: userID, Body: body, CreatedAt: s.now()}
	if err := s.repo.Comments().Create(ctx, c); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if userID != p.UserID {
		s.notify.Notify(ctx, models.Notification{
			UserID:  p.UserID,
			Kind:    models.NotificationPlaybookComment,
			Title:   "New comment",
			Message: fmt.Sprintf("%s commented on %q: %s", userID, p.Title, preview(body, commentPreviewRunes)),
			Link:    playbookLink(p.ID),
		})
	}
	return c, nil
}

// DeleteComment removes a comment. Only its author may delete it.
func (s *PlaybookService) DeleteComment(ctx context.Context, userID, commentID string) error {
	const op = "delete comment"
	c, err := s.repo.Comments().GetByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if c == nil {
		return apperr.NotFound(op, "comment")
	}
	if c.UserID != userOrDefault(userID) {
		return apperr.Wrap(apperr.ErrForbidden, op, "only the comment author can delete it", nil)
	}
	return s.repo.Comments().Delete(ctx, c.ID)
}

// collect loads the bookmarks a playbook is built from.
func (s *PlaybookService) collect(ctx context.Context, op, userID string, ids []string, folderID *string) ([]models.Bookmark, error) {
	var out []models.Bookmark
	for _, id := range ids {
		b, err := s.repo.Bookmarks().GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if b == nil || b.UserID != userID || b.Deleted() {
			return nil, apperr.Validation(op, fmt.Sprintf("bookmark %q does not exist", id))
		}
		out = append(out, *b)
	}
	if folderID = nonEmpty(folderID); folderID != nil {
		if err := checkFolder(ctx, s.repo, op, userID, folderID); err != nil {
			return nil, err
		}
		inFolder, err := s.repo.Bookmarks().List(ctx, models.BookmarkFilter{UserID: userID, FolderID: folderID})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, inFolder...)
	}
	return out, nil
}

func snapshot(bookmarks []models.Bookmark, extra []models.PlaybookItem) []models.PlaybookItem {
	items := make([]models.PlaybookItem, 0, len(bookmarks)+len(extra))
	seen := make(map[string]struct{})
	add := func(item models.PlaybookItem) {
		url, ok := models.NormalizeURL(item.URL)
		if !ok {
			return
		}
		if _, dup := seen[url]; dup {
			return
		}
		seen[url] = struct{}{}
		item.URL = url
		item.Title = defaultTitle(item.Title, url)
		item.Description = strings.TrimSpace(item.Description)
		item.Tags = models.NormalizeTags(item.Tags, models.MaxTags)
		items = append(items, item)
	}
	for _, b := range bookmarks {
		add(models.PlaybookItem{Title: b.Title, URL: b.URL, Description: b.Description, Tags: b.Tags})
	}
	for _, item := range extra {
		add(item)
	}
	return items
}

func dominantCategory(bookmarks []models.Bookmark) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, b := range bookmarks {
		if b.Category == "" {
			continue
		}
		counts[b.Category]++
		if counts[b.Category] > bestCount {
			best, bestCount = b.Category, counts[b.Category]
		}
	}
	return best
}

func playbookTitle(op, title string) (string, error) {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return "", apperr.Validation(op, "title is required")
	}
	if utf8.RuneCountInString(title) > maxNameRunes {
		return "", apperr.Validation(op, fmt.Sprintf("title must be at most %d characters", maxNameRunes))
	}
	return title, nil
}

func validatePlaybookFields(op string, p *models.Playbook) error {
	if p.PriceCents < 0 {
		return apperr.Validation(op, "price_cents must not be negative")
	}
	if utf8.RuneCountInString(p.Description) > maxDescriptionRunes {
		return apperr.Validation(op, fmt.Sprintf("description must be at most %d characters", maxDescriptionRunes))
	}
	return nil
}

func playbookLink(id string) string { return "/api/playbooks/" + id }

func formatPrice(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func preview(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "…"
}
