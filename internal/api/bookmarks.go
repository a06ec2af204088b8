package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/dastanaron/bookaimark/internal/analysis"
	"github.com/dastanaron/bookaimark/internal/commands"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
)

type createBookmarkRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	FolderID    *string  `json:"folder_id"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Favorite    bool     `json:"favorite"`
	Icon        *string  `json:"icon"`
	ResolveIcon *bool    `json:"resolve_icon"`
	Analyze     bool     `json:"analyze"`
}

type updateBookmarkRequest struct {
	URL         *string        `json:"url"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	FolderID    optionalString `json:"folder_id"`
	Category    *string        `json:"category"`
	Tags        []string       `json:"tags"`
	Favorite    *bool          `json:"favorite"`
	Icon        optionalString `json:"icon"`
}

type bookmarkListResponse struct {
	Bookmarks []models.Bookmark `json:"bookmarks"`
	Count     int               `json:"count"`
}

type analyzeBookmarkResponse struct {
	Bookmark *models.Bookmark `json:"bookmark"`
	Analysis analysis.Result  `json:"analysis"`
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BookmarkFilter{
		UserID:   userID(r),
		Query:    strings.TrimSpace(q.Get("q")),
		Tag:      strings.TrimSpace(q.Get("tag")),
		Category: strings.TrimSpace(q.Get("category")),
	}
	switch folder := strings.TrimSpace(q.Get("folder_id")); folder {
	case "":
	case "root":
		filter.RootOnly = true
	default:
		filter.FolderID = &folder
	}

	var err error
	if filter.FavoriteOnly, err = queryBool(r, "favorite", false); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.IncludeDeleted, err = queryBool(r, "include_deleted", false); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.DeletedOnly, err = queryBool(r, "deleted", false); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		s.fail(w, r, err)
		return
	}

	bookmarks, err := s.svc.Bookmarks.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bookmarkListResponse{Bookmarks: bookmarks, Count: len(bookmarks)})
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var req createBookmarkRequest
	if !s.decode(w, r, schemaBookmarkCreate, &req) {
		return
	}
	resolveIcon := req.ResolveIcon == nil || *req.ResolveIcon
	b, err := s.svc.Bookmarks.Create(r.Context(), userID(r), service.BookmarkInput{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		FolderID:    req.FolderID,
		Category:    req.Category,
		Tags:        req.Tags,
		Favorite:    req.Favorite,
		Icon:        req.Icon,
	}, service.CreateOptions{ResolveIcon: resolveIcon, Analyze: req.Analyze})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBookmark(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bookmarks.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBookmark(w http.ResponseWriter, r *http.Request) {
	var req updateBookmarkRequest
	if !s.decode(w, r, schemaBookmarkUpdate, &req) {
		return
	}
	patch := service.BookmarkPatch{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		Favorite:    req.Favorite,
	}
	if req.FolderID.cleared() {
		patch.ClearFolder = true
	} else if req.FolderID.Set {
		patch.FolderID = req.FolderID.Value
	}
	if req.Icon.Set {
		empty := ""
		patch.Icon = &empty
		if req.Icon.Value != nil {
			patch.Icon = req.Icon.Value
		}
	}

	b, err := s.svc.Bookmarks.Update(r.Context(), userID(r), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	permanent, err := queryBool(r, "permanent", false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Bookmarks.Delete(r.Context(), userID(r), r.PathValue("id"), permanent); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreBookmark(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bookmarks.Restore(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleRefreshFavicon(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bookmarks.RefreshFavicon(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleAnalyzeBookmark(w http.ResponseWriter, r *http.Request) {
	fileIntoFolder, err := queryBool(r, "file_into_folder", false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, result, err := s.svc.Bookmarks.Analyze(r.Context(), userID(r), r.PathValue("id"), fileIntoFolder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analyzeBookmarkResponse{Bookmark: b, Analysis: result})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	report, err := s.importer.Import(r.Context(), userID(r), bytes.NewReader(body))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

var exportContentTypes = map[string]string{
	commands.FormatHTML: "text/html; charset=utf-8",
	commands.FormatJSON: "application/json",
	commands.FormatPDF:  "application/pdf",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = commands.FormatHTML
	}
	var buf bytes.Buffer
	if _, err := s.exporter.Write(r.Context(), userID(r), &buf, format); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", exportContentTypes[format])
	w.Header().Set("Content-Disposition", `attachment; filename="bookmarks.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleDedupe(w http.ResponseWriter, r *http.Request) {
	report, err := s.dedupe.Execute(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
