package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
)

type createPlaybookRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Tags        []string              `json:"tags"`
	PriceCents  int64                 `json:"price_cents"`
	BookmarkIDs []string              `json:"bookmark_ids"`
	FolderID    *string               `json:"folder_id"`
	Items       []models.PlaybookItem `json:"items"`
}

type updatePlaybookRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Tags        []string `json:"tags"`
	PriceCents  *int64   `json:"price_cents"`
	BookmarkIDs []string `json:"bookmark_ids"`
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) handleListPlaybooks(w http.ResponseWriter, r *http.Request) {
	mine, err := queryBool(r, "mine", false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	playbooks, err := s.svc.Playbooks.List(r.Context(), userID(r), service.PlaybookQuery{
		Mine:     mine,
		Query:    strings.TrimSpace(r.URL.Query().Get("q")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]models.Playbook{"playbooks": playbooks})
}

func (s *Server) handleCreatePlaybook(w http.ResponseWriter, r *http.Request) {
	var req createPlaybookRequest
	if !s.decode(w, r, schemaPlaybookCreate, &req) {
		return
	}
	p, err := s.svc.Playbooks.Create(r.Context(), userID(r), service.PlaybookInput(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPlaybook(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Playbooks.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePlaybook(w http.ResponseWriter, r *http.Request) {
	var req updatePlaybookRequest
	if !s.decode(w, r, schemaPlaybookUpdate, &req) {
		return
	}
	p, err := s.svc.Playbooks.Update(r.Context(), userID(r), r.PathValue("id"), service.PlaybookPatch(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlaybook(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Playbooks.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublishPlaybook(w http.ResponseWriter, r *http.Request) {
	s.playbookAction(w, r, s.svc.Playbooks.Publish)
}

func (s *Server) handleUnpublishPlaybook(w http.ResponseWriter, r *http.Request) {
	s.playbookAction(w, r, s.svc.Playbooks.Unpublish)
}

func (s *Server) handleLikePlaybook(w http.ResponseWriter, r *http.Request) {
	s.playbookAction(w, r, s.svc.Playbooks.Like)
}

func (s *Server) playbookAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID, id string) (*models.Playbook, error)) {
	p, err := action(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAcquirePlaybook(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Playbooks.Acquire(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.Playbooks.Comments(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]models.Comment{"comments": comments})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !s.decode(w, r, schemaCommentCreate, &req) {
		return
	}
	c, err := s.svc.Playbooks.AddComment(r.Context(), userID(r), r.PathValue("id"), req.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Playbooks.DeleteComment(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.svc.Playbooks.Purchases(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]models.Purchase{"purchases": purchases})
}
