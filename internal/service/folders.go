package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/repository"
)

const maxNameRunes = 200

// FolderInput carries the fields accepted when creating a folder.
type FolderInput struct {
	Name     string
	ParentID *string
	Color    string
	Icon     string
}

// FolderPatch renames or moves a folder. ClearParent moves it to the root.
type FolderPatch struct {
	Name        *string
	ParentID    *string
	ClearParent bool
	Color       *string
	Icon        *string
}

// FolderService provides business logic for folders
type FolderService struct {
	repo repository.Repository
	now  func() time.Time
}

// NewFolderService creates a new folder service
func NewFolderService(repo repository.Repository, opts Options) *FolderService {
	return &FolderService{repo: repo, now: opts.clock()}
}

// List returns all folders of the user
func (s *FolderService) List(ctx context.Context, userID string) ([]models.Folder, error) {
	return s.repo.Folders().List(ctx, userOrDefault(userID))
}

// Get returns a folder by ID
func (s *FolderService) Get(ctx context.Context, userID, id string) (*models.Folder, error) {
	f, err := s.repo.Folders().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	if f == nil || f.UserID != userOrDefault(userID) {
		return nil, apperr.NotFound("get folder", "folder")
	}
	return f, nil
}

// Create creates a new folder
func (s *FolderService) Create(ctx context.Context, userID string, in FolderInput) (*models.Folder, error) {
	const op = "create folder"
	userID = userOrDefault(userID)
	name, err := folderName(op, in.Name)
	if err != nil {
		return nil, err
	}
	if err := checkFolder(ctx, s.repo, op, userID, in.ParentID); err != nil {
		return nil, err
	}
	f := &models.Folder{
		UserID:    userID,
		Name:      name,
		ParentID:  nonEmpty(in.ParentID),
		Color:     strings.TrimSpace(in.Color),
		Icon:      strings.TrimSpace(in.Icon),
		CreatedAt: s.now(),
	}
	if err := s.repo.Folders().Create(ctx, f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// Upsert creates or returns existing folder
func (s *FolderService) Upsert(ctx context.Context, userID, name string, parentID *string) (*models.Folder, error) {
	name, err := folderName("upsert folder", name)
	if err != nil {
		return nil, err
	}
	return s.repo.Folders().Upsert(ctx, userOrDefault(userID), name, nonEmpty(parentID))
}

// Update renames or moves a folder. A folder cannot move under itself or
// one of its descendants.
func (s *FolderService) Update(ctx context.Context, userID, id string, patch FolderPatch) (*models.Folder, error) {
	const op = "update folder"
	f, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if f.Name, err = folderName(op, *patch.Name); err != nil {
			return nil, err
		}
	}
	if patch.Color != nil {
		f.Color = strings.TrimSpace(*patch.Color)
	}
	if patch.Icon != nil {
		f.Icon = strings.TrimSpace(*patch.Icon)
	}
	switch {
	case patch.ClearParent:
		f.ParentID = nil
	case nonEmpty(patch.ParentID) != nil:
		parentID := *nonEmpty(patch.ParentID)
		if err := checkFolder(ctx, s.repo, op, f.UserID, &parentID); err != nil {
			return nil, err
		}
		if err := s.checkCycle(ctx, f, parentID); err != nil {
			return nil, err
		}
		f.ParentID = &parentID
	}
	if err := s.repo.Folders().Update(ctx, f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

func (s *FolderService) checkCycle(ctx context.Context, f *models.Folder, parentID string) error {
	folders, err := s.repo.Folders().List(ctx, f.UserID)
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}
	parents := make(map[string]*string, len(folders))
	for _, folder := range folders {
		parents[folder.ID] = folder.ParentID
	}
	for cur, hops := &parentID, 0; cur != nil && hops <= len(folders); hops++ {
		if *cur == f.ID {
			return apperr.Validation("update folder", "folder cannot be moved into itself or a descendant")
		}
		cur = parents[*cur]
	}
	return nil
}

// Delete deletes a folder by ID. Its bookmarks move to the root and its
// children move up to its parent.
func (s *FolderService) Delete(ctx context.Context, userID, id string) error {
	f, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Folders().Delete(ctx, f.ID); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}

// Items returns all items (subfolders first, then bookmarks) in a folder.
// A nil folderID lists the root level.
func (s *FolderService) Items(ctx context.Context, userID string, folderID *string) ([]models.Item, error) {
	userID = userOrDefault(userID)
	folderID = nonEmpty(folderID)
	if folderID != nil {
		if _, err := s.Get(ctx, userID, *folderID); err != nil {
			return nil, err
		}
	}

	folders, err := s.repo.Folders().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("folder items: %w", err)
	}
	children := make([]models.Folder, 0)
	for _, f := range folders {
		if sameParent(f.ParentID, folderID) {
			children = append(children, f)
		}
	}
	sort.SliceStable(children, func(i, j int) bool {
		return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
	})

	filter := models.BookmarkFilter{UserID: userID, FolderID: folderID, RootOnly: folderID == nil}
	bookmarks, err := s.repo.Bookmarks().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("folder items: %w", err)
	}

	items := make([]models.Item, 0, len(children)+len(bookmarks))
	for _, f := range children {
		items = append(items, models.ItemFromFolder(f))
	}
	for _, b := range bookmarks {
		items = append(items, models.ItemFromBookmark(b))
	}
	return items, nil
}

func sameParent(parentID, target *string) bool {
	if target == nil {
		return parentID == nil || *parentID == ""
	}
	return parentID != nil && *parentID == *target
}

func folderName(op, name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", apperr.Validation(op, "name is required")
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		return "", apperr.Validation(op, fmt.Sprintf("name must be at most %d characters", maxNameRunes))
	}
	return name, nil
}
