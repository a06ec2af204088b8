package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dastanaron/bookaimark/internal/analysis"
	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/favicon"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/notifications"
	"github.com/dastanaron/bookaimark/internal/repository"
)

// Options wires optional collaborators into the services. Nil analyzers
// or resolvers simply disable the features that need them.
type Options struct {
	Analyzer    *analysis.Analyzer
	Favicons    *favicon.Resolver
	Notifier    notifications.Notifier
	Notify      config.Notifications
	InlineIcons bool
	Logger      *slog.Logger
	Now         func() time.Time
}

func (o Options) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// Services bundles every business service over one repository.
type Services struct {
	Bookmarks     *BookmarkService
	Folders       *FolderService
	Labels        *LabelService
	Playbooks     *PlaybookService
	Notifications *NotificationService
	Dashboard     *DashboardService
}

// New builds all services sharing repo and opts.
func New(repo repository.Repository, opts Options) *Services {
	notify := NewNotificationService(repo, opts)
	folders := NewFolderService(repo, opts)
	bookmarks := NewBookmarkService(repo, opts)
	bookmarks.notify = notify
	labels := NewLabelService(repo)
	return &Services{
		Bookmarks:     bookmarks,
		Folders:       folders,
		Labels:        labels,
		Playbooks:     NewPlaybookService(repo, notify, opts),
		Notifications: notify,
		Dashboard:     NewDashboardService(repo, labels, notify),
	}
}

// BookmarkInput carries the fields accepted when creating a bookmark.
type BookmarkInput struct {
	Title       string
	URL         string
	Description string
	FolderID    *string
	Category    string
	Tags        []string
	Favorite    bool
	Icon        *string
}

// CreateOptions toggles the enrichment steps run after a bookmark is stored.
type CreateOptions struct {
	ResolveIcon bool
	Analyze     bool
}

// BookmarkPatch is a partial update. Nil fields are left unchanged; a nil
// Tags slice leaves tags alone while an empty one clears them.
type BookmarkPatch struct {
	Title       *string
	URL         *string
	Description *string
	Category    *string
	Tags        []string
	Favorite    *bool
	Icon        *string
	FolderID    *string
	ClearFolder bool
}

// BookmarkService provides business logic for bookmarks
type BookmarkService struct {
	repo        repository.Repository
	analyzer    *analysis.Analyzer
	favicons    *favicon.Resolver
	notify      *NotificationService
	inlineIcons bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewBookmarkService creates a new bookmark service
func NewBookmarkService(repo repository.Repository, opts Options) *BookmarkService {
	return &BookmarkService{
		repo:        repo,
		analyzer:    opts.Analyzer,
		favicons:    opts.Favicons,
		inlineIcons: opts.InlineIcons,
		logger:      logging.NewComponentLogger(opts.Logger, "bookmarks"),
		now:         opts.clock(),
	}
}

// List returns the user's bookmarks matching filter.
func (s *BookmarkService) List(ctx context.Context, filter models.BookmarkFilter) ([]models.Bookmark, error) {
	filter.UserID = userOrDefault(filter.UserID)
	return s.repo.Bookmarks().List(ctx, filter)
}

// ListAll returns all live bookmarks of the user
func (s *BookmarkService) ListAll(ctx context.Context, userID string) ([]models.Bookmark, error) {
	return s.List(ctx, models.BookmarkFilter{UserID: userID})
}

// Search filters live bookmarks by query string, optionally within a folder
func (s *BookmarkService) Search(ctx context.Context, userID, query string, folderID *string) ([]models.Bookmark, error) {
	return s.List(ctx, models.BookmarkFilter{UserID: userID, Query: query, FolderID: folderID})
}

// Get returns the user's bookmark, including soft-deleted ones.
func (s *BookmarkService) Get(ctx context.Context, userID, id string) (*models.Bookmark, error) {
	b, err := s.repo.Bookmarks().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get bookmark: %w", err)
	}
	if b == nil || b.UserID != userOrDefault(userID) {
		return nil, apperr.NotFound("get bookmark", "bookmark")
	}
	return b, nil
}

// Create validates and stores a new bookmark, then optionally resolves its
// icon and analyzes it. Enrichment failures are logged, not returned.
func (s *BookmarkService) Create(ctx context.Context, userID string, in BookmarkInput, opts CreateOptions) (*models.Bookmark, error) {
	const op = "create bookmark"
	userID = userOrDefault(userID)

	url, ok := models.NormalizeURL(in.URL)
	if !ok {
		return nil, apperr.Validation(op, "url must be an absolute http(s) url")
	}
	if err := checkFolder(ctx, s.repo, op, userID, in.FolderID); err != nil {
		return nil, err
	}

	b := &models.Bookmark{
		UserID:      userID,
		Title:       defaultTitle(in.Title, url),
		URL:         url,
		Description: strings.TrimSpace(in.Description),
		FolderID:    nonEmpty(in.FolderID),
		Category:    strings.TrimSpace(in.Category),
		Tags:        models.NormalizeTags(in.Tags, models.MaxTags),
		Favorite:    in.Favorite,
		Icon:        nonEmpty(in.Icon),
		CreatedAt:   s.now(),
	}
	b.UpdatedAt = b.CreatedAt

	if b.Icon == nil && opts.ResolveIcon {
		if icon, err := s.resolveIcon(ctx, url); err != nil {
			s.logger.Debug("favicon resolution failed", "url", url, "error", err)
		} else {
			b.Icon = icon
		}
	}

	if err := s.repo.Bookmarks().Create(ctx, b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("bookmark created", "bookmark_id", b.ID, "user_id", userID)

	if opts.Analyze {
		if analyzed, _, err := s.analyze(ctx, b, false); err != nil {
			s.logger.Warn("bookmark analysis failed", "bookmark_id", b.ID, "error", err)
		} else {
			b = analyzed
		}
	}
	return s.reload(ctx, b)
}

// Update applies patch to the user's live bookmark.
func (s *BookmarkService) Update(ctx context.Context, userID, id string, patch BookmarkPatch) (*models.Bookmark, error) {
	const op = "update bookmark"
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if b.Deleted() {
		return nil, apperr.Wrap(apperr.ErrConflict, op, "bookmark is deleted; restore it first", nil)
	}

	if patch.URL != nil {
		url, ok := models.NormalizeURL(*patch.URL)
		if !ok {
			return nil, apperr.Validation(op, "url must be an absolute http(s) url")
		}
		b.URL = url
	}
	if patch.Title != nil {
		b.Title = defaultTitle(*patch.Title, b.URL)
	}
	if patch.Description != nil {
		b.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		b.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Tags != nil {
		b.Tags = models.NormalizeTags(patch.Tags, models.MaxTags)
	}
	if patch.Favorite != nil {
		b.Favorite = *patch.Favorite
	}
	if patch.Icon != nil {
		b.Icon = nonEmpty(patch.Icon)
	}
	switch {
	case patch.ClearFolder:
		b.FolderID = nil
	case patch.FolderID != nil:
		if err := checkFolder(ctx, s.repo, op, b.UserID, patch.FolderID); err != nil {
			return nil, err
		}
		b.FolderID = nonEmpty(patch.FolderID)
	}

	b.UpdatedAt = s.now()
	if err := s.repo.Bookmarks().Update(ctx, b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.reload(ctx, b)
}

// Delete soft-deletes the bookmark, or removes it when permanent is set.
func (s *BookmarkService) Delete(ctx context.Context, userID, id string, permanent bool) error {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if permanent {
		if err := s.repo.Bookmarks().Delete(ctx, b.ID); err != nil {
			return fmt.Errorf("delete bookmark: %w", err)
		}
		return nil
	}
	if b.Deleted() {
		return nil
	}
	now := s.now()
	b.DeletedAt = &now
	b.UpdatedAt = now
	if err := s.repo.Bookmarks().Update(ctx, b); err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return nil
}

// Restore clears the soft-delete marker.
func (s *BookmarkService) Restore(ctx context.Context, userID, id string) (*models.Bookmark, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !b.Deleted() {
		return b, nil
	}
	b.DeletedAt = nil
	b.UpdatedAt = s.now()
	if err := s.repo.Bookmarks().Update(ctx, b); err != nil {
		return nil, fmt.Errorf("restore bookmark: %w", err)
	}
	return s.reload(ctx, b)
}

// Upsert creates a new bookmark if URL doesn't exist, otherwise merges b into
// the existing one. Analysis results, the favorite flag and the icon of the
// existing bookmark survive unless b carries its own. Returns true if created,
// false if updated.
func (s *BookmarkService) Upsert(ctx context.Context, b *models.Bookmark) (bool, error) {
	url, ok := models.NormalizeURL(b.URL)
	if !ok {
		return false, apperr.Validation("upsert bookmark", fmt.Sprintf("invalid url %q", b.URL))
	}
	b.UserID = userOrDefault(b.UserID)
	b.URL = url
	b.Title = defaultTitle(b.Title, url)
	b.Tags = models.NormalizeTags(b.Tags, models.MaxTags)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	b.UpdatedAt = s.now()

	existing, err := s.repo.Bookmarks().GetByURL(ctx, b.UserID, url)
	if err != nil {
		return false, fmt.Errorf("upsert bookmark: %w", err)
	}
	if existing == nil {
		if err := s.repo.Bookmarks().Create(ctx, b); err != nil {
			return false, fmt.Errorf("upsert bookmark: %w", err)
		}
		return true, nil
	}

	mergeBookmark(existing, b)
	if err := s.repo.Bookmarks().Update(ctx, existing); err != nil {
		return false, fmt.Errorf("upsert bookmark: %w", err)
	}
	*b = *existing
	return false, nil
}

func mergeBookmark(dst, src *models.Bookmark) {
	dst.Title = src.Title
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.Icon != nil && *src.Icon != "" {
		dst.Icon = src.Icon
	}
	if src.FolderID != nil {
		dst.FolderID = src.FolderID
	}
	if src.Category != "" {
		dst.Category = src.Category
	}
	if src.Summary != "" {
		dst.Summary = src.Summary
		dst.Sentiment = src.Sentiment
		dst.AnalyzedAt = src.AnalyzedAt
	}
	dst.Favorite = dst.Favorite || src.Favorite
	dst.Tags = models.MergeTags(dst.Tags, src.Tags)
	dst.UpdatedAt = src.UpdatedAt
}

// RefreshFavicon re-runs the favicon chain for one bookmark.
func (s *BookmarkService) RefreshFavicon(ctx context.Context, userID, id string) (*models.Bookmark, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if s.favicons == nil {
		return nil, apperr.Wrap(apperr.ErrUnavailable, "refresh favicon", "favicon resolver not configured", nil)
	}
	icon, err := s.resolveIcon(ctx, b.URL)
	if err != nil {
		return nil, err
	}
	b.Icon = icon
	b.UpdatedAt = s.now()
	if err := s.repo.Bookmarks().Update(ctx, b); err != nil {
		return nil, fmt.Errorf("refresh favicon: %w", err)
	}
	return s.reload(ctx, b)
}

// RefreshFavicons resolves icons for the user's live bookmarks with bounded
// concurrency. With onlyMissing set, bookmarks that have an icon are skipped.
// It returns how many bookmarks were updated.
func (s *BookmarkService) RefreshFavicons(ctx context.Context, userID string, onlyMissing bool) (int, error) {
	if s.favicons == nil {
		return 0, apperr.Wrap(apperr.ErrUnavailable, "refresh favicons", "favicon resolver not configured", nil)
	}
	all, err := s.ListAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("refresh favicons: %w", err)
	}
	targets := make([]models.Bookmark, 0, len(all))
	urls := make([]string, 0, len(all))
	for _, b := range all {
		if onlyMissing && b.Icon != nil && *b.Icon != "" {
			continue
		}
		targets = append(targets, b)
		urls = append(urls, b.URL)
	}

	results, errs := s.favicons.ResolveAll(ctx, urls)
	updated := 0
	for i := range targets {
		if errs[i] != nil {
			s.logger.Debug("favicon resolution failed", "bookmark_id", targets[i].ID, "error", errs[i])
			continue
		}
		icon := s.maybeInline(ctx, results[i].URL)
		b := targets[i]
		b.Icon = &icon
		b.UpdatedAt = s.now()
		if err := s.repo.Bookmarks().Update(ctx, &b); err != nil {
			return updated, fmt.Errorf("refresh favicons: %w", err)
		}
		updated++
	}
	return updated, nil
}

func (s *BookmarkService) resolveIcon(ctx context.Context, url string) (*string, error) {
	if s.favicons == nil {
		return nil, nil
	}
	result, err := s.favicons.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	icon := s.maybeInline(ctx, result.URL)
	return &icon, nil
}

func (s *BookmarkService) maybeInline(ctx context.Context, iconURL string) string {
	if !s.inlineIcons {
		return iconURL
	}
	inlined, err := s.favicons.Inline(ctx, iconURL)
	if err != nil {
		s.logger.Debug("favicon inline failed, keeping url", "icon", iconURL, "error", err)
		return iconURL
	}
	return inlined
}

// Analyze runs content analysis on the bookmark and stores the result. With
// fileIntoFolder set, a non-fallback result also moves the bookmark into a
// root folder named after the category.
func (s *BookmarkService) Analyze(ctx context.Context, userID, id string, fileIntoFolder bool) (*models.Bookmark, analysis.Result, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, analysis.Result{}, err
	}
	if b.Deleted() {
		return nil, analysis.Result{}, apperr.Wrap(apperr.ErrConflict, "analyze bookmark", "bookmark is deleted", nil)
	}
	return s.analyze(ctx, b, fileIntoFolder)
}

// SuggestTags proposes tags for a stored bookmark without changing it.
func (s *BookmarkService) SuggestTags(ctx context.Context, userID, id string) (analysis.Result, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return analysis.Result{}, err
	}
	if s.analyzer == nil {
		return analysis.Result{}, apperr.Wrap(apperr.ErrUnavailable, "suggest tags", "analysis not configured", nil)
	}
	return s.analyzer.SuggestTags(ctx, analysis.Input{URL: b.URL, Title: b.Title})
}

func (s *BookmarkService) analyze(ctx context.Context, b *models.Bookmark, fileIntoFolder bool) (*models.Bookmark, analysis.Result, error) {
	if s.analyzer == nil {
		return nil, analysis.Result{}, apperr.Wrap(apperr.ErrUnavailable, "analyze bookmark", "analysis not configured", nil)
	}
	result, err := s.analyzer.Analyze(ctx, analysis.Input{URL: b.URL, Title: b.Title})
	if err != nil {
		return nil, analysis.Result{}, err
	}
	updated, err := s.ApplyAnalysis(ctx, b, result, fileIntoFolder)
	return updated, result, err
}

// ApplyAnalysis writes result onto b and persists it.
func (s *BookmarkService) ApplyAnalysis(ctx context.Context, b *models.Bookmark, result analysis.Result, fileIntoFolder bool) (*models.Bookmark, error) {
	const op = "apply analysis"
	analysis.Apply(b, result, s.now())

	if fileIntoFolder && !result.Fallback && result.Category != "" {
		folder, err := s.repo.Folders().Upsert(ctx, b.UserID, result.Category, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		b.FolderID = &folder.ID
	}

	b.UpdatedAt = s.now()
	if err := s.repo.Bookmarks().Update(ctx, b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !result.Fallback && s.notify != nil {
		s.notify.Notify(ctx, models.Notification{
			UserID:  b.UserID,
			Kind:    models.NotificationAnalysisComplete,
			Title:   "Analysis complete",
			Message: fmt.Sprintf("%q was categorized as %s", b.Title, result.Category),
			Link:    "/api/bookmarks/" + b.ID,
		})
	}
	return s.reload(ctx, b)
}

// reload re-reads b so derived columns such as folder_name are filled.
func (s *BookmarkService) reload(ctx context.Context, b *models.Bookmark) (*models.Bookmark, error) {
	fresh, err := s.repo.Bookmarks().GetByID(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("reload bookmark: %w", err)
	}
	if fresh == nil {
		return b, nil
	}
	return fresh, nil
}

func checkFolder(ctx context.Context, repo repository.Repository, op, userID string, folderID *string) error {
	if folderID == nil || strings.TrimSpace(*folderID) == "" {
		return nil
	}
	f, err := repo.Folders().GetByID(ctx, *folderID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if f == nil || f.UserID != userID {
		return apperr.Validation(op, fmt.Sprintf("folder %q does not exist", *folderID))
	}
	return nil
}

func userOrDefault(userID string) string {
	if userID = strings.TrimSpace(userID); userID == "" {
		return models.DefaultUserID
	}
	return userID
}

func defaultTitle(title, url string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	if host := models.HostLabel(url); host != "" {
		return host
	}
	return url
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
