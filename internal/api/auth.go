package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/prudhvinik1/livesync/internal/services"
)

type contextKey int

const (
	claimsKey contextKey = iota
	tokenKey
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// bearerToken reads the token from the Authorization header, falling back
// to the access_token query parameter browsers use for websockets.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, r, services.ErrInvalidToken)
			return
		}

		claims, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principal(ctx context.Context) string {
	claims, ok := ctx.Value(claimsKey).(*services.TokenClaims)
	if !ok {
		return ""
	}
	return claims.Principal()
}

func sessionToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	account, err := s.auth.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{ID: account.ID.String(), Email: account.Email})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.LogoutAll(r.Context(), bearerToken(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
