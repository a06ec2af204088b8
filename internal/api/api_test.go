package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookaimark/internal/analysis"
	"github.com/dastanaron/bookaimark/internal/api"
	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/favicon"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
	"github.com/dastanaron/bookaimark/internal/testsupport"
)

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func offlineClient() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("offline")
	})}
}

type harness struct {
	t       *testing.T
	handler http.Handler
	svc     *service.Services
}

func newHarness(t *testing.T, mutate ...func(*api.Options)) *harness {
	t.Helper()
	repo := testsupport.NewRepository(t)
	svc := service.New(repo, service.Options{Logger: logging.NewNop(), Now: testsupport.NewClock().Now})
	opts := api.Options{
		Services:   svc,
		Repository: repo,
		Logger:     logging.NewNop(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	server, err := api.New(opts)
	require.NoError(t, err)
	return &harness{t: t, handler: server.Handler(), svc: svc}
}

// do sends a request as user (empty means the default user).
func (h *harness) do(method, path, user, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode[map[string]string](t, rec)
	require.Contains(t, body, "error")
	require.Len(t, body, 1)
	return body["error"]
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rec = h.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBookmarkLifecycle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/bookmarks", "alice", `{"url":"go.dev","title":"Go","tags":["Lang","lang"],"resolve_icon":false}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Bookmark](t, rec)
	assert.Equal(t, "https://go.dev", created.URL)
	assert.Equal(t, []string{"lang"}, created.Tags)

	rec = h.do(http.MethodGet, "/api/bookmarks/"+created.ID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[models.Bookmark](t, rec))

	requireError(t, h.do(http.MethodGet, "/api/bookmarks/"+created.ID, "bob", ""), http.StatusNotFound)

	rec = h.do(http.MethodPost, "/api/folders", "alice", `{"name":"Reading"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	folder := decode[models.Folder](t, rec)

	rec = h.do(http.MethodPatch, "/api/bookmarks/"+created.ID, "alice", fmt.Sprintf(`{"favorite":true,"folder_id":%q}`, folder.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Bookmark](t, rec)
	assert.True(t, updated.Favorite)
	require.NotNil(t, updated.FolderID)
	assert.Equal(t, folder.ID, *updated.FolderID)

	rec = h.do(http.MethodGet, "/api/folders/"+folder.ID+"/items", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[map[string][]models.Item](t, rec)["items"]
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	rec = h.do(http.MethodPut, "/api/bookmarks/"+created.ID, "alice", `{"folder_id":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decode[models.Bookmark](t, rec).FolderID)

	rec = h.do(http.MethodGet, "/api/bookmarks?favorite=true&folder_id=root", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Bookmarks []models.Bookmark `json:"bookmarks"`
		Count     int               `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, list.Count)

	rec = h.do(http.MethodDelete, "/api/bookmarks/"+created.ID, "alice", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodGet, "/api/bookmarks", "alice", "")
	assert.Contains(t, rec.Body.String(), `"count":0`)
	rec = h.do(http.MethodGet, "/api/bookmarks?include_deleted=true", "alice", "")
	assert.Contains(t, rec.Body.String(), `"count":1`)

	requireError(t, h.do(http.MethodPatch, "/api/bookmarks/"+created.ID, "alice", `{"title":"x"}`), http.StatusConflict)

	rec = h.do(http.MethodPost, "/api/bookmarks/"+created.ID+"/restore", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[models.Bookmark](t, rec).DeletedAt)

	rec = h.do(http.MethodDelete, "/api/bookmarks/"+created.ID+"?permanent=true", "alice", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	requireError(t, h.do(http.MethodGet, "/api/bookmarks/"+created.ID, "alice", ""), http.StatusNotFound)
}

func TestErrorResponses(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed json", http.MethodPost, "/api/bookmarks", `{"url":`, http.StatusBadRequest},
		{"missing required field", http.MethodPost, "/api/bookmarks", `{"title":"x"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/folders", `{"name":"x","owner":"y"}`, http.StatusBadRequest},
		{"invalid url", http.MethodPost, "/api/bookmarks", `{"url":"ftp://example.com"}`, http.StatusBadRequest},
		{"bad query flag", http.MethodGet, "/api/bookmarks?favorite=maybe", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/bookmarks?limit=-1", "", http.StatusBadRequest},
		{"missing bookmark", http.MethodGet, "/api/bookmarks/nope", "", http.StatusNotFound},
		{"missing folder", http.MethodDelete, "/api/folders/nope", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/unknown", "", http.StatusNotFound},
		{"unknown nested route", http.MethodPost, "/api/bookmarks/x/y/z", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/dashboard", "", http.StatusMethodNotAllowed},
		{"analysis disabled", http.MethodPost, "/api/ai/content-analysis", `{"text":"hello"}`, http.StatusServiceUnavailable},
		{"favicon disabled", http.MethodGet, "/api/favicon?url=go.dev", "", http.StatusServiceUnavailable},
		{"bad export format", http.MethodGet, "/api/bookmarks/export?format=docx", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := requireError(t, h.do(tt.method, tt.path, "", tt.body), tt.status)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestMethodNotAllowedListsAllowedMethods(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/tags", "", "")
	assert.Equal(t, "method not allowed", requireError(t, rec, http.StatusMethodNotAllowed))
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodGet)

	rec = h.do(http.MethodPatch, "/api/notifications/read-all", "", "")
	requireError(t, rec, http.StatusMethodNotAllowed)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodPost)

	assert.Equal(t, "route not found", requireError(t, h.do(http.MethodGet, "/api/nothing-here", "", ""), http.StatusNotFound))
}

func TestBearerToken(t *testing.T) {
	h := newHarness(t, func(o *api.Options) { o.Config.APIToken = "s3cret" })

	requireError(t, h.do(http.MethodGet, "/api/bookmarks", "", ""), http.StatusUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health checks stay public")
}

func TestBodyLimit(t *testing.T) {
	h := newHarness(t, func(o *api.Options) { o.Config.MaxBodyBytes = 64 })
	body := fmt.Sprintf(`{"url":"https://example.com","description":%q}`, strings.Repeat("x", 200))
	requireError(t, h.do(http.MethodPost, "/api/bookmarks", "", body), http.StatusRequestEntityTooLarge)
}

func TestImportExportAndDedupe(t *testing.T) {
	h := newHarness(t)
	page := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3>Dev</H3>
    <DL><p>
        <DT><A HREF="https://go.dev/" TAGS="go">Go</A>
    </DL><p>
    <DT><A HREF="https://example.com/">Example</A>
</DL><p>`

	rec := h.do(http.MethodPost, "/api/bookmarks/import", "", page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"created":2`)

	rec = h.do(http.MethodGet, "/api/bookmarks/export", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<H3 ")
	assert.Contains(t, rec.Body.String(), `HREF="https://go.dev/"`)

	rec = h.do(http.MethodGet, "/api/bookmarks/export?format=json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = h.do(http.MethodPost, "/api/bookmarks", "", `{"url":"https://go.dev","resolve_icon":false}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodPost, "/api/bookmarks/dedupe", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[struct {
		Removed []struct {
			ID string `json:"id"`
		} `json:"removed"`
	}](t, rec)
	assert.Len(t, report.Removed, 1)

	rec = h.do(http.MethodGet, "/api/tags", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"go"`)
}

func TestContentAnalysis(t *testing.T) {
	completer := completerFunc(func(_ context.Context, _ string, user string) (string, error) {
		if strings.Contains(user, "broken") {
			return "", errors.New("upstream exploded")
		}
		return `{"category":"programming languages","tags":["Go"],"sentiment":"positive","summary":"About Go.","confidence":0.9}`, nil
	})
	h := newHarness(t, func(o *api.Options) {
		o.Analyzer = analysis.New(completer, analysis.Options{HTTPClient: offlineClient()})
	})

	rec := h.do(http.MethodPost, "/api/ai/content-analysis", "", `{"text":"Go is a language","title":"Go"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[analysis.Result](t, rec)
	assert.Equal(t, "Programming Languages", result.Category)
	assert.False(t, result.Fallback)

	rec = h.do(http.MethodPost, "/api/ai/content-analysis", "", `{"text":"broken"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[analysis.Result](t, rec).Fallback, "llm failures degrade to the fallback")

	requireError(t, h.do(http.MethodPost, "/api/ai/content-analysis", "", `{}`), http.StatusBadRequest)

	rec = h.do(http.MethodPost, "/api/ai/content-analysis/batch", "", `{"items":[{"text":"one"},{"text":"broken"},{}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	batch := decode[map[string][]analysis.BatchItem](t, rec)["results"]
	require.Len(t, batch, 3)
	require.NotNil(t, batch[0].Result)
	assert.False(t, batch[0].Result.Fallback)
	require.NotNil(t, batch[1].Result)
	assert.True(t, batch[1].Result.Fallback)
	assert.Nil(t, batch[2].Result)
	assert.NotEmpty(t, batch[2].Error)

	tooMany := `{"items":[` + strings.TrimSuffix(strings.Repeat(`{"text":"x"},`, 11), ",") + `]}`
	requireError(t, h.do(http.MethodPost, "/api/ai/content-analysis/batch", "", tooMany), http.StatusBadRequest)

	rec = h.do(http.MethodPost, "/api/ai/tags", "", `{"text":"Go is a language"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestFaviconEndpoint(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprint(w, `<html><head><link rel="icon" href="/static/icon.png"></head></html>`)
			return
		}
		if r.URL.Path == "/static/icon.png" {
			w.Header().Set("Content-Type", "image/png")
			return
		}
		http.NotFound(w, r)
	}))
	defer site.Close()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	h := newHarness(t, func(o *api.Options) {
		o.Favicons = favicon.NewResolver(favicon.Options{HTTPClient: client, ServiceURL: site.URL + "/s2?d={domain}"})
	})

	rec := h.do(http.MethodGet, "/api/favicon?url="+site.URL, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[favicon.Result](t, rec)
	assert.Equal(t, favicon.SourceHTML, result.Source)
	assert.Equal(t, site.URL+"/static/icon.png", result.URL)

	requireError(t, h.do(http.MethodGet, "/api/favicon", "", ""), http.StatusBadRequest)
}

func TestPlaybookMarketplace(t *testing.T) {
	h := newHarness(t)

	var ids []string
	for _, u := range []string{"https://go.dev", "https://pkg.go.dev"} {
		rec := h.do(http.MethodPost, "/api/bookmarks", "alice", fmt.Sprintf(`{"url":%q,"resolve_icon":false}`, u))
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[models.Bookmark](t, rec).ID)
	}

	body, _ := json.Marshal(map[string]any{"title": "Go kit", "bookmark_ids": ids, "price_cents": 250})
	rec := h.do(http.MethodPost, "/api/playbooks", "alice", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pb := decode[models.Playbook](t, rec)
	assert.Len(t, pb.Items, 2)

	requireError(t, h.do(http.MethodGet, "/api/playbooks/"+pb.ID, "bob", ""), http.StatusNotFound)
	requireError(t, h.do(http.MethodPost, "/api/playbooks/"+pb.ID+"/like", "bob", ""), http.StatusNotFound)

	rec = h.do(http.MethodPost, "/api/playbooks/"+pb.ID+"/publish", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	requireError(t, h.do(http.MethodPatch, "/api/playbooks/"+pb.ID, "bob", `{"title":"mine now"}`), http.StatusForbidden)
	requireError(t, h.do(http.MethodPost, "/api/playbooks/"+pb.ID+"/acquire", "alice", ""), http.StatusConflict)

	rec = h.do(http.MethodGet, "/api/playbooks", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]models.Playbook](t, rec)["playbooks"], 1)

	rec = h.do(http.MethodPost, "/api/playbooks/"+pb.ID+"/acquire", "bob", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	acquired := decode[service.AcquireResult](t, rec)
	assert.Equal(t, 2, acquired.Imported)
	assert.Equal(t, int64(250), acquired.Purchase.PriceCents)
	assert.Equal(t, "Go kit", acquired.Folder.Name)

	rec = h.do(http.MethodPost, "/api/playbooks/"+pb.ID+"/comments", "bob", `{"body":"Great list"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[models.Comment](t, rec)

	requireError(t, h.do(http.MethodDelete, "/api/comments/"+comment.ID, "alice", ""), http.StatusForbidden)

	rec = h.do(http.MethodGet, "/api/notifications?unread=true", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int                   `json:"unread"`
	}](t, rec)
	assert.Equal(t, 2, inbox.Unread)
	require.Len(t, inbox.Notifications, 2)

	rec = h.do(http.MethodPost, "/api/notifications/"+inbox.Notifications[0].ID+"/read", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodPost, "/api/notifications/read-all", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["updated"])

	rec = h.do(http.MethodGet, "/api/purchases", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]models.Purchase](t, rec)["purchases"], 1)

	rec = h.do(http.MethodGet, "/api/dashboard", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[service.Dashboard](t, rec)
	assert.Equal(t, 2, dash.Counts.Bookmarks)
	assert.Equal(t, 1, dash.Counts.Folders)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	repo := testsupport.NewRepository(t)
	svc := service.New(repo, service.Options{Logger: logging.NewNop()})
	server, err := api.New(api.Options{Config: config.Server{}, Services: svc, Repository: repo, Logger: logging.NewNop()})
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get("http://" + listener.Addr().String() + "/healthz")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
