package api

import (
	"net/http"

	"github.com/prudhvinik1/livesync/internal/models"
)

type unreadResponse struct {
	Unread int `json:"unread"`
}

type markReadResponse struct {
	Updated int `json:"updated"`
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.rows.UnreadCount(r.Context(), principal(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unreadResponse{Unread: n})
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.rows.MarkAllRead(r.Context(), principal(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markReadResponse{Updated: n})
}

// getPreferences answers null until the caller saves preferences.
func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.rows.Preferences(r.Context(), principal(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) savePreferences(w http.ResponseWriter, r *http.Request) {
	var fields models.Row
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}

	prefs, err := s.rows.SavePreferences(r.Context(), principal(r.Context()), fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
