package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/dastanaron/bookaimark/internal/models"
)

// collection is one JSON array persisted in its own file. Every
// read-modify-write holds the in-process mutex and an advisory lock on
// <file>.lock, and the new contents replace the file through a rename.
// With an empty path the encoded array lives in memory only.
type collection[T any] struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
	mem  []byte
}

func newCollection[T any](dir, name string) *collection[T] {
	if dir == "" {
		return &collection[T]{}
	}
	path := filepath.Join(dir, name+".json")
	return &collection[T]{path: path, lock: flock.New(path + ".lock")}
}

func (c *collection[T]) load() ([]T, error) {
	data := c.mem
	if c.path != "" {
		var err error
		data, err = os.ReadFile(c.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return []T{}, nil
			}
			return nil, fmt.Errorf("read %s: %w", filepath.Base(c.path), err)
		}
	}
	items := []T{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name(), err)
	}
	return items, nil
}

func (c *collection[T]) save(items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name(), err)
	}
	if c.path == "" {
		c.mem = data
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", c.name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", c.name(), err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", c.name(), err)
	}
	return nil
}

func (c *collection[T]) name() string {
	if c.path == "" {
		return "memory collection"
	}
	return filepath.Base(c.path)
}

// view loads the collection under a shared lock.
func (c *collection[T]) view() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock != nil {
		if err := c.lock.RLock(); err != nil {
			return nil, fmt.Errorf("lock %s: %w", c.name(), err)
		}
		defer c.lock.Unlock()
	}
	return c.load()
}

// update runs fn over the current items and persists what it returns.
func (c *collection[T]) update(fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock != nil {
		if err := c.lock.Lock(); err != nil {
			return fmt.Errorf("lock %s: %w", c.name(), err)
		}
		defer c.lock.Unlock()
	}
	items, err := c.load()
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	return c.save(items)
}

func findIndex[T any](items []T, match func(*T) bool) int {
	for i := range items {
		if match(&items[i]) {
			return i
		}
	}
	return -1
}

// JSONRepository implements Repository with one JSON file per collection.
// It also backs the memory driver.
type JSONRepository struct {
	bookmarks     *jsonBookmarkRepo
	folders       *jsonFolderRepo
	playbooks     *jsonPlaybookRepo
	comments      *jsonCommentRepo
	notifications *jsonNotificationRepo
	purchases     *jsonPurchaseRepo
	dir           string
}

// NewJSONRepository stores collections under dir, creating it when missing.
func NewJSONRepository(dir string) (*JSONRepository, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("json store: data directory must be set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return newJSONRepository(dir), nil
}

// NewMemoryRepository returns a non-durable store for demos and tests.
func NewMemoryRepository() *JSONRepository {
	return newJSONRepository("")
}

func newJSONRepository(dir string) *JSONRepository {
	bookmarks := newCollection[models.Bookmark](dir, "bookmarks")
	folders := newCollection[models.Folder](dir, "folders")
	comments := newCollection[models.Comment](dir, "comments")
	return &JSONRepository{
		dir:           dir,
		bookmarks:     &jsonBookmarkRepo{items: bookmarks, folders: folders},
		folders:       &jsonFolderRepo{items: folders, bookmarks: bookmarks},
		playbooks:     &jsonPlaybookRepo{items: newCollection[models.Playbook](dir, "playbooks"), comments: comments},
		comments:      &jsonCommentRepo{items: comments},
		notifications: &jsonNotificationRepo{items: newCollection[models.Notification](dir, "notifications")},
		purchases:     &jsonPurchaseRepo{items: newCollection[models.Purchase](dir, "purchases")},
	}
}

func (r *JSONRepository) Bookmarks() BookmarkRepository         { return r.bookmarks }
func (r *JSONRepository) Folders() FolderRepository             { return r.folders }
func (r *JSONRepository) Playbooks() PlaybookRepository         { return r.playbooks }
func (r *JSONRepository) Comments() CommentRepository           { return r.comments }
func (r *JSONRepository) Notifications() NotificationRepository { return r.notifications }
func (r *JSONRepository) Purchases() PurchaseRepository         { return r.purchases }

// Ping checks that the data directory is still reachable.
func (r *JSONRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.dir == "" {
		return nil
	}
	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %q is not a directory", r.dir)
	}
	return nil
}

// Close is a no-op; every operation already persisted its changes.
func (r *JSONRepository) Close() error { return nil }

type jsonBookmarkRepo struct {
	items   *collection[models.Bookmark]
	folders *collection[models.Folder]
}

func (r *jsonBookmarkRepo) attachFolderNames(bookmarks []models.Bookmark) error {
	folders, err := r.folders.view()
	if err != nil {
		return err
	}
	names := make(map[string]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}
	for i := range bookmarks {
		bookmarks[i].FolderName = nil
		if bookmarks[i].FolderID == nil {
			continue
		}
		if name, ok := names[*bookmarks[i].FolderID]; ok {
			bookmarks[i].FolderName = &name
		}
	}
	return nil
}

func (r *jsonBookmarkRepo) List(ctx context.Context, filter models.BookmarkFilter) ([]models.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	out := make([]models.Bookmark, 0, len(items))
	for i := range items {
		if filter.Match(&items[i]) {
			out = append(out, items[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := strings.ToLower(out[i].Title), strings.ToLower(out[j].Title)
		if ti != tj {
			return ti < tj
		}
		return out[i].ID < out[j].ID
	})
	start, end := filter.Page(len(out))
	out = out[start:end]
	if err := r.attachFolderNames(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jsonBookmarkRepo) get(ctx context.Context, match func(*models.Bookmark) bool) (*models.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	idx := findIndex(items, match)
	if idx < 0 {
		return nil, nil
	}
	found := []models.Bookmark{items[idx]}
	if err := r.attachFolderNames(found); err != nil {
		return nil, err
	}
	return &found[0], nil
}

func (r *jsonBookmarkRepo) GetByID(ctx context.Context, id string) (*models.Bookmark, error) {
	return r.get(ctx, func(b *models.Bookmark) bool { return b.ID == id })
}

func (r *jsonBookmarkRepo) GetByURL(ctx context.Context, userID, url string) (*models.Bookmark, error) {
	return r.get(ctx, func(b *models.Bookmark) bool {
		return b.UserID == userID && b.URL == url && !b.Deleted()
	})
}

func (r *jsonBookmarkRepo) Create(ctx context.Context, b *models.Bookmark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepareBookmark(b)
	return r.items.update(func(items []models.Bookmark) ([]models.Bookmark, error) {
		stored := *b
		stored.FolderName = nil
		return append(items, stored), nil
	})
}

func prepareBookmark(b *models.Bookmark) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = nowUTC()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
}

func (r *jsonBookmarkRepo) Update(ctx context.Context, b *models.Bookmark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return r.items.update(func(items []models.Bookmark) ([]models.Bookmark, error) {
		idx := findIndex(items, func(x *models.Bookmark) bool { return x.ID == b.ID })
		if idx < 0 {
			return items, nil
		}
		stored := *b
		stored.FolderName = nil
		stored.CreatedAt = items[idx].CreatedAt
		stored.UserID = items[idx].UserID
		items[idx] = stored
		return items, nil
	})
}

func (r *jsonBookmarkRepo) Upsert(ctx context.Context, b *models.Bookmark) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	created := false
	err := r.items.update(func(items []models.Bookmark) ([]models.Bookmark, error) {
		idx := findIndex(items, func(x *models.Bookmark) bool {
			return x.UserID == b.UserID && x.URL == b.URL && !x.Deleted()
		})
		if idx < 0 {
			created = true
			prepareBookmark(b)
			stored := *b
			stored.FolderName = nil
			return append(items, stored), nil
		}
		b.ID = items[idx].ID
		b.CreatedAt = items[idx].CreatedAt
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = nowUTC()
		}
		if b.Tags == nil {
			b.Tags = []string{}
		}
		stored := *b
		stored.FolderName = nil
		items[idx] = stored
		return items, nil
	})
	return created, err
}

func (r *jsonBookmarkRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.items.update(func(items []models.Bookmark) ([]models.Bookmark, error) {
		if idx := findIndex(items, func(x *models.Bookmark) bool { return x.ID == id }); idx >= 0 {
			items = append(items[:idx], items[idx+1:]...)
		}
		return items, nil
	})
}

type jsonFolderRepo struct {
	items     *collection[models.Folder]
	bookmarks *collection[models.Bookmark]
}

func (r *jsonFolderRepo) List(ctx context.Context, userID string) ([]models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	out := make([]models.Folder, 0, len(items))
	for _, f := range items {
		if userID == "" || f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *jsonFolderRepo) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	if idx := findIndex(items, func(f *models.Folder) bool { return f.ID == id }); idx >= 0 {
		f := items[idx]
		return &f, nil
	}
	return nil, nil
}

func (r *jsonFolderRepo) Create(ctx context.Context, f *models.Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = nowUTC()
	}
	return r.items.update(func(items []models.Folder) ([]models.Folder, error) {
		return append(items, *f), nil
	})
}

func (r *jsonFolderRepo) Update(ctx context.Context, f *models.Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.items.update(func(items []models.Folder) ([]models.Folder, error) {
		if idx := findIndex(items, func(x *models.Folder) bool { return x.ID == f.ID }); idx >= 0 {
			stored := *f
			stored.CreatedAt = items[idx].CreatedAt
			stored.UserID = items[idx].UserID
			items[idx] = stored
		}
		return items, nil
	})
}

// Delete updates the folders file first and then the bookmarks file. The
// two files are not changed atomically together.
func (r *jsonFolderRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	found := false
	err := r.items.update(func(items []models.Folder) ([]models.Folder, error) {
		idx := findIndex(items, func(x *models.Folder) bool { return x.ID == id })
		if idx < 0 {
			return items, nil
		}
		found = true
		parent := items[idx].ParentID
		items = append(items[:idx], items[idx+1:]...)
		for i := range items {
			if items[i].ParentID != nil && *items[i].ParentID == id {
				items[i].ParentID = copyString(parent)
			}
		}
		return items, nil
	})
	if err != nil || !found {
		return err
	}
	return r.bookmarks.update(func(items []models.Bookmark) ([]models.Bookmark, error) {
		for i := range items {
			if items[i].FolderID != nil && *items[i].FolderID == id {
				items[i].FolderID = nil
			}
		}
		return items, nil
	})
}

func (r *jsonFolderRepo) Upsert(ctx context.Context, userID, name string, parentID *string) (*models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result models.Folder
	err := r.items.update(func(items []models.Folder) ([]models.Folder, error) {
		idx := findIndex(items, func(f *models.Folder) bool {
			return f.UserID == userID && f.Name == name && sameParent(f.ParentID, parentID)
		})
		if idx >= 0 {
			result = items[idx]
			return items, nil
		}
		result = models.Folder{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      name,
			ParentID:  copyString(parentID),
			CreatedAt: nowUTC(),
		}
		return append(items, result), nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type jsonPlaybookRepo struct {
	items    *collection[models.Playbook]
	comments *collection[models.Comment]
}

func (r *jsonPlaybookRepo) List(ctx context.Context, filter models.PlaybookFilter) ([]models.Playbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	out := make([]models.Playbook, 0, len(items))
	for i := range items {
		if filter.Match(&items[i]) {
			out = append(out, items[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *jsonPlaybookRepo) GetByID(ctx context.Context, id string) (*models.Playbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	if idx := findIndex(items, func(p *models.Playbook) bool { return p.ID == id }); idx >= 0 {
		p := items[idx]
		return &p, nil
	}
	return nil, nil
}

func (r *jsonPlaybookRepo) Create(ctx context.Context, p *models.Playbook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = models.PlaybookDraft
	}
	p.Tags = nonNilStrings(p.Tags)
	p.Items = nonNilItems(p.Items)
	return r.items.update(func(items []models.Playbook) ([]models.Playbook, error) {
		return append(items, *p), nil
	})
}

func (r *jsonPlaybookRepo) Update(ctx context.Context, p *models.Playbook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Tags = nonNilStrings(p.Tags)
	p.Items = nonNilItems(p.Items)
	return r.items.update(func(items []models.Playbook) ([]models.Playbook, error) {
		if idx := findIndex(items, func(x *models.Playbook) bool { return x.ID == p.ID }); idx >= 0 {
			stored := *p
			stored.CreatedAt = items[idx].CreatedAt
			stored.UserID = items[idx].UserID
			stored.Likes = items[idx].Likes
			stored.Acquisitions = items[idx].Acquisitions
			items[idx] = stored
		}
		return items, nil
	})
}

func (r *jsonPlaybookRepo) Increment(ctx context.Context, id string, counter PlaybookCounter, at time.Time) (*models.Playbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *models.Playbook
	err := r.items.update(func(items []models.Playbook) ([]models.Playbook, error) {
		idx := findIndex(items, func(x *models.Playbook) bool { return x.ID == id })
		if idx < 0 {
			return items, nil
		}
		switch counter {
		case CounterLikes:
			items[idx].Likes++
		case CounterAcquisitions:
			items[idx].Acquisitions++
		default:
			return nil, fmt.Errorf("unknown playbook counter %q", counter)
		}
		items[idx].UpdatedAt = at.UTC()
		p := items[idx]
		out = &p
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jsonPlaybookRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.items.update(func(items []models.Playbook) ([]models.Playbook, error) {
		if idx := findIndex(items, func(x *models.Playbook) bool { return x.ID == id }); idx >= 0 {
			items = append(items[:idx], items[idx+1:]...)
		}
		return items, nil
	})
	if err != nil {
		return err
	}
	return r.comments.update(func(items []models.Comment) ([]models.Comment, error) {
		kept := items[:0]
		for _, c := range items {
			if c.PlaybookID != id {
				kept = append(kept, c)
			}
		}
		return kept, nil
	})
}

type jsonCommentRepo struct {
	items *collection[models.Comment]
}

func (r *jsonCommentRepo) ListByPlaybook(ctx context.Context, playbookID string) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	out := []models.Comment{}
	for _, c := range items {
		if c.PlaybookID == playbookID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *jsonCommentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	if idx := findIndex(items, func(c *models.Comment) bool { return c.ID == id }); idx >= 0 {
		c := items[idx]
		return &c, nil
	}
	return nil, nil
}

func (r *jsonCommentRepo) Create(ctx context.Context, c *models.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = nowUTC()
	}
	return r.items.update(func(items []models.Comment) ([]models.Comment, error) {
		return append(items, *c), nil
	})
}

func (r *jsonCommentRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.items.update(func(items []models.Comment) ([]models.Comment, error) {
		if idx := findIndex(items, func(x *models.Comment) bool { return x.ID == id }); idx >= 0 {
			items = append(items[:idx], items[idx+1:]...)
		}
		return items, nil
	})
}

type jsonNotificationRepo struct {
	items *collection[models.Notification]
}

func (r *jsonNotificationRepo) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	out := []models.Notification{}
	for _, n := range items {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *jsonNotificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	if idx := findIndex(items, func(n *models.Notification) bool { return n.ID == id }); idx >= 0 {
		n := items[idx]
		return &n, nil
	}
	return nil, nil
}

func (r *jsonNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = nowUTC()
	}
	return r.items.update(func(items []models.Notification) ([]models.Notification, error) {
		return append(items, *n), nil
	})
}

func (r *jsonNotificationRepo) Update(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.items.update(func(items []models.Notification) ([]models.Notification, error) {
		if idx := findIndex(items, func(x *models.Notification) bool { return x.ID == n.ID }); idx >= 0 {
			stored := *n
			stored.UserID = items[idx].UserID
			stored.Kind = items[idx].Kind
			stored.CreatedAt = items[idx].CreatedAt
			items[idx] = stored
		}
		return items, nil
	})
}

func (r *jsonNotificationRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.items.update(func(items []models.Notification) ([]models.Notification, error) {
		if idx := findIndex(items, func(x *models.Notification) bool { return x.ID == id }); idx >= 0 {
			items = append(items[:idx], items[idx+1:]...)
		}
		return items, nil
	})
}

func (r *jsonNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	changed := 0
	err := r.items.update(func(items []models.Notification) ([]models.Notification, error) {
		for i := range items {
			if items[i].UserID == userID && !items[i].Read {
				items[i].Read = true
				changed++
			}
		}
		return items, nil
	})
	return changed, err
}

type jsonPurchaseRepo struct {
	items *collection[models.Purchase]
}

func (r *jsonPurchaseRepo) ListByUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	out := []models.Purchase{}
	for _, p := range items {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *jsonPurchaseRepo) Find(ctx context.Context, userID, playbookID string) (*models.Purchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := r.items.view()
	if err != nil {
		return nil, err
	}
	if idx := findIndex(items, func(p *models.Purchase) bool {
		return p.UserID == userID && p.PlaybookID == playbookID
	}); idx >= 0 {
		p := items[idx]
		return &p, nil
	}
	return nil, nil
}

func (r *jsonPurchaseRepo) Create(ctx context.Context, p *models.Purchase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	return r.items.update(func(items []models.Purchase) ([]models.Purchase, error) {
		return append(items, *p), nil
	})
}
