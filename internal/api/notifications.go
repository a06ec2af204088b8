package api

import (
	"net/http"

	"github.com/dastanaron/bookaimark/internal/models"
)

type notificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly, err := queryBool(r, "unread", false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	user := userID(r)
	list, err := s.svc.Notifications.List(r.Context(), user, unreadOnly)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	unread, err := s.svc.Notifications.UnreadCount(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, notificationListResponse{Notifications: list, Unread: unread})
}

func (s *Server) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Notifications.MarkRead(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	updated, err := s.svc.Notifications.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Notifications.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
