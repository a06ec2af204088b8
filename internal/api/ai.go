package api

import (
	"net/http"
	"strings"

	"github.com/dastanaron/bookaimark/internal/analysis"
	"github.com/dastanaron/bookaimark/internal/apperr"
)

type batchRequest struct {
	Items []analysis.Input `json:"items"`
}

type tagsRequest struct {
	BookmarkID string `json:"bookmark_id"`
	analysis.Input
}

var errAnalysisDisabled = apperr.Wrap(apperr.ErrUnavailable, "", "content analysis is not configured", nil)

func (s *Server) handleContentAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		s.fail(w, r, errAnalysisDisabled)
		return
	}
	var in analysis.Input
	if !s.decode(w, r, schemaAnalysisInput, &in) {
		return
	}
	result, err := s.analyzer.Analyze(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleContentAnalysisBatch(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		s.fail(w, r, errAnalysisDisabled)
		return
	}
	var req batchRequest
	if !s.decode(w, r, schemaAnalysisBatch, &req) {
		return
	}
	items, err := s.analyzer.AnalyzeBatch(r.Context(), req.Items)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]analysis.BatchItem{"results": items})
}

// handleSuggestTags suggests tags for a stored bookmark or for raw input.
func (s *Server) handleSuggestTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if !s.decode(w, r, schemaTagsRequest, &req) {
		return
	}
	if id := strings.TrimSpace(req.BookmarkID); id != "" {
		result, err := s.svc.Bookmarks.SuggestTags(r.Context(), userID(r), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
		return
	}
	if s.analyzer == nil {
		s.fail(w, r, errAnalysisDisabled)
		return
	}
	result, err := s.analyzer.SuggestTags(r.Context(), req.Input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	if s.favicons == nil {
		s.fail(w, r, apperr.Wrap(apperr.ErrUnavailable, "", "favicon resolution is not configured", nil))
		return
	}
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		s.fail(w, r, apperr.Validation("", "url query parameter is required"))
		return
	}
	result, err := s.favicons.Resolve(r.Context(), target)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
