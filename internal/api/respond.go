package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/repositories"
	"github.com/prudhvinik1/livesync/internal/services"
	"github.com/prudhvinik1/livesync/internal/utils"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrSessionExpired),
		errors.Is(err, services.ErrNoPrincipal):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, utils.ErrWeakPassword),
		errors.Is(err, utils.ErrInvalidEmail),
		errors.Is(err, repositories.ErrInvalidRow),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnknownTable),
		errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status. Internal failures are logged and the
// client sees a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

var errBadBody = errors.New("malformed request body")

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}
