// Package server exposes the HTTP surface: the search endpoint, the user's
// book lists, catalog administration (the HTTP face of index maintenance),
// and operational endpoints.
package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deidaraiorek/openbook/internal/logger"
	"github.com/deidaraiorek/openbook/internal/metrics"
	"github.com/deidaraiorek/openbook/internal/search"
	"github.com/deidaraiorek/openbook/internal/storage"
)

type Server struct {
	store   *storage.Store
	search  *search.Service
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(store *storage.Store, searcher *search.Service, m *metrics.Metrics) *Server {
	return &Server{
		store:   store,
		search:  searcher,
		metrics: m,
		log:     logger.WithComponent("server"),
	}
}

// Router builds the chi router with the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/books", func(r chi.Router) {
		r.Get("/search", s.handleSearchBooks)
		r.Get("/", s.handleListBooks)
		r.Get("/completed", s.handleListByStatus(storage.StatusCompleted))
		r.Get("/recommended", s.handleListByStatus(storage.StatusRecommended))
		r.Post("/", s.handleCreateBook)
		r.Put("/{id}", s.handleUpdateBook)
		r.Delete("/{id}", s.handleDeleteBook)
	})

	r.Route("/authors", func(r chi.Router) {
		r.Post("/", s.handleCreateAuthor)
		r.Put("/{id}", s.handleUpdateAuthor)
		r.Delete("/{id}", s.handleDeleteAuthor)
	})

	r.Post("/admin/reindex", s.handleReindex)

	return r
}

// observe records request counts and latency per route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		s.metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, pattern, strconv.Itoa(ww.Status()),
		).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, pattern,
		).Observe(time.Since(start).Seconds())
	})
}
