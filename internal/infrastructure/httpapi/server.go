package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/usecase"
)

// Server exposes the scheduling engine to operators.
type Server struct {
	router     chi.Router
	engine     *usecase.Engine
	adminToken string
	logger     *slog.Logger
}

// New creates a Server with all routes registered.
func New(engine *usecase.Engine, adminToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		router:     chi.NewRouter(),
		engine:     engine,
		adminToken: adminToken,
		logger:     logger.With("component", "http"),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(adminAuth(s.adminToken))

		r.Post("/process", s.handleProcess)
		r.Get("/stats", s.handleStats)

		r.Get("/policies", s.handleListPolicies)
		r.Put("/policies/{name}", s.handleSavePolicy)

		r.Put("/articles/{id}", s.handleRegisterArticle)
		r.Get("/articles/{id}", s.handleGetArticle)

		r.Post("/items", s.handleSchedule)
		r.Get("/items/{id}", s.handleGetItem)
		r.Post("/items/{id}/reschedule", s.handleReschedule)
		r.Post("/items/{id}/cancel", s.handleCancel)
		r.Post("/items/{id}/publish", s.handlePublish)
	})
}
