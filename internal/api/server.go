// Package api exposes accounts, row writes and live table snapshots over
// HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/services"
	"github.com/prudhvinik1/livesync/internal/synchronizer"
)

type Authenticator interface {
	Register(ctx context.Context, email, password string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*services.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*services.TokenClaims, error)
}

type RowStore interface {
	List(ctx context.Context, table, ownerID string) ([]models.Row, error)
	Create(ctx context.Context, table, ownerID string, fields models.Row) (models.Row, error)
	Update(ctx context.Context, table, ownerID, id string, fields models.Row) (models.Row, error)
	Delete(ctx context.Context, table, ownerID, id string) error
	UnreadCount(ctx context.Context, ownerID string) (int, error)
	MarkAllRead(ctx context.Context, ownerID string) (int, error)
	Preferences(ctx context.Context, ownerID string) (models.Row, error)
	SavePreferences(ctx context.Context, ownerID string, fields models.Row) (models.Row, error)
}

type SessionWatcher interface {
	Watch(ctx context.Context, token string) <-chan models.SessionState
}

type Config struct {
	Auth   Authenticator
	Rows   RowStore
	Source synchronizer.Source[models.Row]
	// Sessions is optional. When set, live connections close once the
	// caller's session ends.
	Sessions SessionWatcher
	Sync     synchronizer.Config
	Logger   *zap.Logger
}

type Server struct {
	auth     Authenticator
	rows     RowStore
	source   synchronizer.Source[models.Row]
	sessions SessionWatcher
	syncCfg  synchronizer.Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	return &Server{
		auth:     cfg.Auth,
		rows:     cfg.Rows,
		source:   cfg.Source,
		sessions: cfg.Sessions,
		syncCfg:  cfg.Sync,
		logger:   logging.OrNop(cfg.Logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/logout", s.logout)
			r.Post("/logout-all", s.logoutAll)
		})

		r.Route("/tables/{table}", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/rows", s.listRows)
			r.Post("/rows", s.createRow)
			r.Put("/rows/{id}", s.updateRow)
			r.Delete("/rows/{id}", s.deleteRow)
			r.Get("/live", s.live)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/notifications/unread-count", s.unreadCount)
			r.Post("/notifications/read-all", s.markAllRead)
			r.Get("/preferences", s.getPreferences)
			r.Put("/preferences", s.savePreferences)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
