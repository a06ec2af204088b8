package api

import (
	"net/http"

	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
)

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	Color    string  `json:"color"`
	Icon     string  `json:"icon"`
}

type updateFolderRequest struct {
	Name     *string        `json:"name"`
	ParentID optionalString `json:"parent_id"`
	Color    *string        `json:"color"`
	Icon     *string        `json:"icon"`
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.svc.Folders.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]models.Folder{"folders": folders})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if !s.decode(w, r, schemaFolderCreate, &req) {
		return
	}
	f, err := s.svc.Folders.Create(r.Context(), userID(r), service.FolderInput(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.Folders.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	var req updateFolderRequest
	if !s.decode(w, r, schemaFolderUpdate, &req) {
		return
	}
	patch := service.FolderPatch{Name: req.Name, Color: req.Color, Icon: req.Icon}
	if req.ParentID.cleared() {
		patch.ClearParent = true
	} else if req.ParentID.Set {
		patch.ParentID = req.ParentID.Value
	}
	f, err := s.svc.Folders.Update(r.Context(), userID(r), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Folders.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFolderItems lists sub-folders and bookmarks. The id "root" selects
// the top level.
func (s *Server) handleFolderItems(w http.ResponseWriter, r *http.Request) {
	var folderID *string
	if id := r.PathValue("id"); id != "root" {
		folderID = &id
	}
	items, err := s.svc.Folders.Items(r.Context(), userID(r), folderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]models.Item{"items": items})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	labels, err := s.svc.Labels.Categories(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]models.LabelCount{"categories": labels})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	labels, err := s.svc.Labels.Tags(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]models.LabelCount{"tags": labels})
}
