package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prudhvinik1/livesync/internal/models"
)

func (s *Server) listRows(w http.ResponseWriter, r *http.Request) {
	rows, err := s.rows.List(r.Context(), chi.URLParam(r, "table"), principal(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) createRow(w http.ResponseWriter, r *http.Request) {
	var fields models.Row
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}

	row, err := s.rows.Create(r.Context(), chi.URLParam(r, "table"), principal(r.Context()), fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) updateRow(w http.ResponseWriter, r *http.Request) {
	var fields models.Row
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}

	row, err := s.rows.Update(r.Context(), chi.URLParam(r, "table"), principal(r.Context()), chi.URLParam(r, "id"), fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) deleteRow(w http.ResponseWriter, r *http.Request) {
	err := s.rows.Delete(r.Context(), chi.URLParam(r, "table"), principal(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
