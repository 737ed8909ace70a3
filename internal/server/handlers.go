package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deidaraiorek/openbook/internal/apperr"
	"github.com/deidaraiorek/openbook/internal/search"
	"github.com/deidaraiorek/openbook/internal/storage"
)

type bookRequest struct {
	ISBN      string  `json:"isbn"`
	Title     string  `json:"title"`
	AuthorIDs []int64 `json:"author_ids"`
}

type authorRequest struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := search.Request{
		UserID: parseInt64(q.Get("user_id"), 0),
		Limit:  parseInt(q.Get("limit"), 0),
		Offset: parseInt(q.Get("skip"), 0),
	}
	mode := "none"
	if q.Has("title") {
		title := q.Get("title")
		req.Title = &title
		mode = "title"
	}
	if q.Has("author") {
		author := q.Get("author")
		req.Author = &author
		mode = "author"
	}

	start := time.Now()
	books, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.countSearch(mode, "error", err)
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(mode, "ok").Inc()
		s.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	}
	s.respondJSON(w, http.StatusOK, books)
}

func (s *Server) countSearch(mode, outcome string, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, apperr.ErrInvalidQuery) {
		outcome = "invalid"
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(mode, outcome).Inc()
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	s.listBooks(w, r, nil)
}

func (s *Server) handleListByStatus(status storage.BookStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.listBooks(w, r, &status)
	}
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request, status *storage.BookStatus) {
	q := r.URL.Query()
	userID := parseInt64(q.Get("user_id"), 0)
	if userID == 0 {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "user_id is required"))
		return
	}
	skip := parseInt(q.Get("skip"), 0)
	limit := parseInt(q.Get("limit"), search.DefaultLimit)
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	if limit > search.MaxLimit {
		limit = search.MaxLimit
	}

	books, err := s.store.ListBooks(r.Context(), userID, status, skip, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, books)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "malformed body: %v", err))
		return
	}
	if req.Title == "" {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "title is required"))
		return
	}

	book, err := s.store.CreateBook(r.Context(), req.ISBN, req.Title, req.AuthorIDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.DocsIndexedTotal.WithLabelValues("book").Inc()
	}
	s.respondJSON(w, http.StatusCreated, book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "malformed body: %v", err))
		return
	}
	if req.Title == "" {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "title is required"))
		return
	}

	book, err := s.store.UpdateBook(r.Context(), id, req.ISBN, req.Title, req.AuthorIDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.DocsIndexedTotal.WithLabelValues("book").Inc()
	}
	s.respondJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.DeleteBook(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req authorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "malformed body: %v", err))
		return
	}
	if req.Name == "" {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "name is required"))
		return
	}

	author, err := s.store.CreateAuthor(r.Context(), req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.DocsIndexedTotal.WithLabelValues("author").Inc()
	}
	s.respondJSON(w, http.StatusCreated, author)
}

func (s *Server) handleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req authorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "malformed body: %v", err))
		return
	}
	if req.Name == "" {
		s.respondError(w, r, apperr.New(apperr.ErrInvalidQuery, "name is required"))
		return
	}

	author, err := s.store.UpdateAuthor(r.Context(), id, req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.DocsIndexedTotal.WithLabelValues("author").Inc()
	}
	s.respondJSON(w, http.StatusOK, author)
}

func (s *Server) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.DeleteAuthor(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Reindex(r.Context())
	if err != nil {
		if s.metrics != nil {
			s.metrics.ReindexRunsTotal.WithLabelValues("error").Inc()
		}
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ReindexRunsTotal.WithLabelValues("ok").Inc()
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.respondJSON(w, status, errorResponse{Error: err.Error()})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.ErrInvalidQuery, "invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
