package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookaimark/internal/analysis"
	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/favicon"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/repository"
	"github.com/dastanaron/bookaimark/internal/service"
	"github.com/dastanaron/bookaimark/internal/testsupport"
)

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// offlineClient fails every request so analysis never reaches the network.
func offlineClient() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("offline")
	})}
}

func newAnalyzer(payload string, err error) *analysis.Analyzer {
	return analysis.New(completerFunc(func(context.Context, string, string) (string, error) {
		return payload, err
	}), analysis.Options{HTTPClient: offlineClient()})
}

func newServices(t *testing.T, mutate ...func(*service.Options)) (*service.Services, repository.Repository) {
	t.Helper()
	repo := testsupport.NewRepository(t)
	opts := service.Options{
		Logger: logging.NewNop(),
		Now:    testsupport.NewClock().Now,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return service.New(repo, opts), repo
}

func ptr[T any](v T) *T { return &v }

func TestBookmarkCreateNormalizesAndRoundTrips(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	created, err := svc.Bookmarks.Create(ctx, "alice", service.BookmarkInput{
		URL:         "Example.com/Path?q=1",
		Description: "  notes ",
		Tags:        []string{" Go ", "go", "#Tips", ""},
	}, service.CreateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/Path?q=1", created.URL)
	assert.Equal(t, "example.com", created.Title)
	assert.Equal(t, "notes", created.Description)
	assert.Equal(t, []string{"go", "tips"}, created.Tags)
	assert.Equal(t, "alice", created.UserID)
	assert.NotEmpty(t, created.ID)

	fetched, err := svc.Bookmarks.Get(ctx, "alice", created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(created, fetched); diff != "" {
		t.Fatalf("fetched bookmark mismatch (-created +fetched):\n%s", diff)
	}

	_, err = svc.Bookmarks.Get(ctx, "bob", created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBookmarkCreateValidation(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	_, err := svc.Bookmarks.Create(ctx, "", service.BookmarkInput{URL: "ftp://example.com/file"}, service.CreateOptions{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Bookmarks.Create(ctx, "", service.BookmarkInput{URL: "https://go.dev", FolderID: ptr("missing")}, service.CreateOptions{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	folder, err := svc.Folders.Create(ctx, "bob", service.FolderInput{Name: "Bob's"})
	require.NoError(t, err)
	_, err = svc.Bookmarks.Create(ctx, "alice", service.BookmarkInput{URL: "https://go.dev", FolderID: &folder.ID}, service.CreateOptions{})
	assert.ErrorIs(t, err, apperr.ErrValidation, "folders of other users are invisible")
}

func TestBookmarkSoftDeleteAndRestore(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	b, err := svc.Bookmarks.Create(ctx, "", service.BookmarkInput{URL: "https://go.dev"}, service.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Bookmarks.Delete(ctx, "", b.ID, false))
	live, err := svc.Bookmarks.ListAll(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := svc.Bookmarks.List(ctx, models.BookmarkFilter{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].DeletedAt)

	_, err = svc.Bookmarks.Update(ctx, "", b.ID, service.BookmarkPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	restored, err := svc.Bookmarks.Restore(ctx, "", b.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	live, err = svc.Bookmarks.ListAll(ctx, "")
	require.NoError(t, err)
	assert.Len(t, live, 1)

	require.NoError(t, svc.Bookmarks.Delete(ctx, "", b.ID, true))
	_, err = svc.Bookmarks.Get(ctx, "", b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBookmarkUpdatePatch(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	folder, err := svc.Folders.Create(ctx, "", service.FolderInput{Name: "Reading"})
	require.NoError(t, err)
	b, err := svc.Bookmarks.Create(ctx, "", service.BookmarkInput{
		Title:    "Go",
		URL:      "https://go.dev",
		Tags:     []string{"go"},
		FolderID: &folder.ID,
	}, service.CreateOptions{})
	require.NoError(t, err)
	require.NotNil(t, b.FolderName)
	assert.Equal(t, "Reading", *b.FolderName)

	updated, err := svc.Bookmarks.Update(ctx, "", b.ID, service.BookmarkPatch{
		Title:       ptr("  "),
		URL:         ptr("pkg.go.dev"),
		Tags:        []string{},
		Favorite:    ptr(true),
		ClearFolder: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "pkg.go.dev", updated.Title)
	assert.Equal(t, "https://pkg.go.dev", updated.URL)
	assert.Empty(t, updated.Tags)
	assert.True(t, updated.Favorite)
	assert.Nil(t, updated.FolderID)
	assert.True(t, updated.UpdatedAt.After(b.UpdatedAt))

	_, err = svc.Bookmarks.Update(ctx, "", b.ID, service.BookmarkPatch{URL: ptr("not a url://")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBookmarkCreateResolvesIcon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<link rel="icon" href="/icon.png">`))
		case "/icon.png":
			w.Header().Set("Content-Type", "image/png")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	resolver := favicon.NewResolver(favicon.Options{HTTPClient: srv.Client(), ServiceURL: srv.URL + "/s?d={domain}"})
	svc, _ := newServices(t, func(o *service.Options) { o.Favicons = resolver })

	b, err := svc.Bookmarks.Create(context.Background(), "", service.BookmarkInput{URL: srv.URL + "/"}, service.CreateOptions{ResolveIcon: true})
	require.NoError(t, err)
	require.NotNil(t, b.Icon)
	assert.Equal(t, srv.URL+"/icon.png", *b.Icon)

	refreshed, err := svc.Bookmarks.RefreshFavicons(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, 0, refreshed, "bookmarks with icons are skipped")
}

func TestBookmarkAnalyzeFilesIntoFolder(t *testing.T) {
	analyzer := newAnalyzer(`{"category":"programming languages","tags":["Go","compilers"],"sentiment":"positive","summary":"The Go site.","confidence":0.9}`, nil)
	svc, _ := newServices(t, func(o *service.Options) { o.Analyzer = analyzer })
	ctx := context.Background()

	b, err := svc.Bookmarks.Create(ctx, "", service.BookmarkInput{URL: "https://go.dev", Tags: []string{"lang"}}, service.CreateOptions{})
	require.NoError(t, err)

	updated, result, err := svc.Bookmarks.Analyze(ctx, "", b.ID, true)
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Programming Languages", updated.Category)
	assert.Equal(t, []string{"lang", "go", "compilers"}, updated.Tags)
	assert.Equal(t, "The Go site.", updated.Summary)
	assert.Equal(t, "positive", updated.Sentiment)
	require.NotNil(t, updated.AnalyzedAt)
	require.NotNil(t, updated.FolderName)
	assert.Equal(t, "Programming Languages", *updated.FolderName)

	folders, err := svc.Folders.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Nil(t, folders[0].ParentID)

	inbox, err := svc.Notifications.List(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationAnalysisComplete, inbox[0].Kind)
}

func TestBookmarkAnalyzeFallbackLeavesCategory(t *testing.T) {
	analyzer := newAnalyzer("", errors.New("upstream down"))
	svc, _ := newServices(t, func(o *service.Options) { o.Analyzer = analyzer })
	ctx := context.Background()

	b, err := svc.Bookmarks.Create(ctx, "", service.BookmarkInput{URL: "https://www.example.com/a", Category: "Misc"}, service.CreateOptions{Analyze: true})
	require.NoError(t, err)
	assert.Equal(t, "Misc", b.Category)
	assert.Equal(t, []string{"example.com"}, b.Tags)
	assert.Nil(t, b.AnalyzedAt)
	assert.Nil(t, b.FolderID)

	inbox, err := svc.Notifications.List(ctx, "", false)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestBookmarkAnalyzeWithoutAnalyzer(t *testing.T) {
	svc, _ := newServices(t)
	b, err := svc.Bookmarks.Create(context.Background(), "", service.BookmarkInput{URL: "https://go.dev"}, service.CreateOptions{})
	require.NoError(t, err)

	_, _, err = svc.Bookmarks.Analyze(context.Background(), "", b.ID, false)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestLabelsAndDashboard(t *testing.T) {
	svc, repo := newServices(t)
	ctx := context.Background()

	testsupport.MustCreateBookmark(t, repo, models.Bookmark{Title: "a", URL: "https://a.example", Category: "Go", Tags: []string{"go", "web"}, Favorite: true})
	testsupport.MustCreateBookmark(t, repo, models.Bookmark{Title: "b", URL: "https://b.example", Category: "go", Tags: []string{"go"}})
	testsupport.MustCreateBookmark(t, repo, models.Bookmark{Title: "c", URL: "https://c.example", Category: "Rust", Tags: []string{"rust"}})
	testsupport.MustCreateBookmark(t, repo, models.Bookmark{Title: "other", URL: "https://d.example", Category: "Go", UserID: "bob"})
	testsupport.MustCreateFolder(t, repo, "", "Inbox", nil)

	gone, err := svc.Bookmarks.Create(ctx, "", service.BookmarkInput{URL: "https://gone.example", Category: "Gone"}, service.CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, svc.Bookmarks.Delete(ctx, "", gone.ID, false))

	categories, err := svc.Labels.Categories(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []models.LabelCount{{Name: "Go", Count: 2}, {Name: "Rust", Count: 1}}, categories)

	tags, err := svc.Labels.Tags(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []models.LabelCount{{Name: "go", Count: 2}, {Name: "rust", Count: 1}, {Name: "web", Count: 1}}, tags)

	d, err := svc.Dashboard.Summary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, service.DashboardCounts{Bookmarks: 3, Favorites: 1, Folders: 1, Deleted: 1}, d.Counts)
	assert.Len(t, d.Recent, 3)
	assert.Len(t, d.TopCategories, 2)
}

func TestBookmarkUpsertMergesExisting(t *testing.T) {
	svc, repo := newServices(t)
	ctx := context.Background()

	analyzed := testsupport.MustCreateBookmark(t, repo, models.Bookmark{
		Title:    "Go",
		URL:      "https://go.dev",
		Category: "Programming",
		Summary:  "The Go website.",
		Tags:     []string{"go"},
		Favorite: true,
	})

	created, err := svc.Bookmarks.Upsert(ctx, &models.Bookmark{Title: "The Go Programming Language", URL: "go.dev", Tags: []string{"Lang"}})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := svc.Bookmarks.Get(ctx, "", analyzed.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Go Programming Language", got.Title)
	assert.Equal(t, "Programming", got.Category)
	assert.Equal(t, "The Go website.", got.Summary)
	assert.True(t, got.Favorite)
	assert.Equal(t, []string{"go", "lang"}, got.Tags)

	created, err = svc.Bookmarks.Upsert(ctx, &models.Bookmark{URL: "https://pkg.go.dev"})
	require.NoError(t, err)
	assert.True(t, created)
}
