// Package api serves the BookAIMark JSON API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dastanaron/bookaimark/internal/analysis"
	"github.com/dastanaron/bookaimark/internal/commands"
	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/favicon"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/repository"
	"github.com/dastanaron/bookaimark/internal/service"
)

const (
	defaultMaxBodyBytes = 1 << 20
	shutdownTimeout     = 5 * time.Second
)

// Options wires the server's collaborators. Analyzer and Favicons may be nil,
// in which case the endpoints that need them answer 503.
type Options struct {
	Config     config.Server
	Services   *service.Services
	Repository repository.Repository
	Analyzer   *analysis.Analyzer
	Favicons   *favicon.Resolver
	Logger     *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg      config.Server
	svc      *service.Services
	repo     repository.Repository
	analyzer *analysis.Analyzer
	favicons *favicon.Resolver
	importer *commands.ImportCommand
	exporter *commands.ExportCommand
	dedupe   *commands.ClearDoublesCommand
	schemas  schemaSet
	logger   *slog.Logger
	handler  http.Handler
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Services == nil || opts.Repository == nil {
		return nil, errors.New("api: services and repository are required")
	}
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger(opts.Logger, "api")
	if opts.Config.MaxBodyBytes <= 0 {
		opts.Config.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		cfg:      opts.Config,
		svc:      opts.Services,
		repo:     opts.Repository,
		analyzer: opts.Analyzer,
		favicons: opts.Favicons,
		importer: commands.NewImportCommand(opts.Services, opts.Logger),
		exporter: commands.NewExportCommand(opts.Services, opts.Logger),
		dedupe:   commands.NewClearDoublesCommand(opts.Services, opts.Logger),
		schemas:  schemas,
		logger:   logger,
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = logging.HTTPMiddleware(logger, s.authenticate(s.unmatched(mux)))
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	mux.HandleFunc("GET /api/bookmarks", s.handleListBookmarks)
	mux.HandleFunc("POST /api/bookmarks", s.handleCreateBookmark)
	mux.HandleFunc("POST /api/bookmarks/import", s.handleImport)
	mux.HandleFunc("GET /api/bookmarks/export", s.handleExport)
	mux.HandleFunc("POST /api/bookmarks/dedupe", s.handleDedupe)
	mux.HandleFunc("GET /api/bookmarks/{id}", s.handleGetBookmark)
	mux.HandleFunc("PUT /api/bookmarks/{id}", s.handleUpdateBookmark)
	mux.HandleFunc("PATCH /api/bookmarks/{id}", s.handleUpdateBookmark)
	mux.HandleFunc("DELETE /api/bookmarks/{id}", s.handleDeleteBookmark)
	mux.HandleFunc("POST /api/bookmarks/{id}/restore", s.handleRestoreBookmark)
	mux.HandleFunc("POST /api/bookmarks/{id}/favicon", s.handleRefreshFavicon)
	mux.HandleFunc("POST /api/bookmarks/{id}/analyze", s.handleAnalyzeBookmark)

	mux.HandleFunc("GET /api/folders", s.handleListFolders)
	mux.HandleFunc("POST /api/folders", s.handleCreateFolder)
	mux.HandleFunc("GET /api/folders/{id}", s.handleGetFolder)
	mux.HandleFunc("PUT /api/folders/{id}", s.handleUpdateFolder)
	mux.HandleFunc("PATCH /api/folders/{id}", s.handleUpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", s.handleDeleteFolder)
	mux.HandleFunc("GET /api/folders/{id}/items", s.handleFolderItems)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/tags", s.handleTags)

	mux.HandleFunc("POST /api/ai/content-analysis", s.handleContentAnalysis)
	mux.HandleFunc("POST /api/ai/content-analysis/batch", s.handleContentAnalysisBatch)
	mux.HandleFunc("POST /api/ai/tags", s.handleSuggestTags)
	mux.HandleFunc("GET /api/favicon", s.handleFavicon)

	mux.HandleFunc("GET /api/playbooks", s.handleListPlaybooks)
	mux.HandleFunc("POST /api/playbooks", s.handleCreatePlaybook)
	mux.HandleFunc("GET /api/playbooks/{id}", s.handleGetPlaybook)
	mux.HandleFunc("PATCH /api/playbooks/{id}", s.handleUpdatePlaybook)
	mux.HandleFunc("PUT /api/playbooks/{id}", s.handleUpdatePlaybook)
	mux.HandleFunc("DELETE /api/playbooks/{id}", s.handleDeletePlaybook)
	mux.HandleFunc("POST /api/playbooks/{id}/publish", s.handlePublishPlaybook)
	mux.HandleFunc("POST /api/playbooks/{id}/unpublish", s.handleUnpublishPlaybook)
	mux.HandleFunc("POST /api/playbooks/{id}/like", s.handleLikePlaybook)
	mux.HandleFunc("POST /api/playbooks/{id}/acquire", s.handleAcquirePlaybook)
	mux.HandleFunc("GET /api/playbooks/{id}/comments", s.handleListComments)
	mux.HandleFunc("POST /api/playbooks/{id}/comments", s.handleAddComment)
	mux.HandleFunc("DELETE /api/comments/{id}", s.handleDeleteComment)
	mux.HandleFunc("GET /api/purchases", s.handlePurchases)

	mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	mux.HandleFunc("POST /api/notifications/read-all", s.handleReadAllNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.handleReadNotification)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.handleDeleteNotification)
}

// unmatched serves mux and rewrites its plain-text 404 and 405 replies as
// JSON errors. A 405 keeps the Allow header set by the mux.
func (s *Server) unmatched(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}
		reply := &statusOnly{header: http.Header{}}
		h.ServeHTTP(reply, r)
		switch reply.status {
		case http.StatusMethodNotAllowed:
			if allow := reply.header.Get("Allow"); allow != "" {
				w.Header().Set("Allow", allow)
			}
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		default:
			s.writeError(w, http.StatusNotFound, "route not found")
		}
	})
}

// statusOnly records the status a handler chose and drops its body.
type statusOnly struct {
	header http.Header
	status int
}

func (s *statusOnly) Header() http.Header { return s.header }

func (s *statusOnly) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
}

func (s *statusOnly) Write(p []byte) (int, error) {
	s.WriteHeader(http.StatusOK)
	return len(p), nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Bind)
	if bind == "" {
		bind = "127.0.0.1:8080"
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       secondsOr(s.cfg.ReadTimeoutSeconds, 15),
		WriteTimeout:      secondsOr(s.cfg.WriteTimeoutSeconds, 60),
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	s.logger.Info("api server listening", "address", listener.Addr().String())
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api serve: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Dashboard.Summary(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}
