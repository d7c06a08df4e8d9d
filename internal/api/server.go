package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/textanchor/internal/config"
	"github.com/dgallion1/textanchor/internal/host"
	"github.com/dgallion1/textanchor/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for the annotation preview service.
type Server struct {
	router   chi.Router
	sessions *session.Registry
	store    host.Store
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sessions *session.Registry, store host.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		store:    store,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Get("/api/stats", s.handleStats)
		r.Post("/api/sessions", s.handleCreateSession)
		r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleRenderSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/info", s.handleSessionInfo)

			r.Get("/annotations", s.handleListAnnotations)
			r.Post("/annotations", s.handleCreateAnnotation)
			r.Delete("/annotations/{annID}", s.handleDeleteAnnotation)

			r.Post("/layout", s.handleLayout)
			r.Get("/segments", s.handleSegments)
			r.Get("/events", s.handleEvents)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
