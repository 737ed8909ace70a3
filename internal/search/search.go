// Package search is the query side of the search subsystem: it validates a
// request, tokenizes it with the same analyzer the index was built with,
// runs the inverted-index lookup, and joins the ranked hits back to current
// row state.
package search

import (
	"context"
	"log/slog"

	"github.com/deidaraiorek/openbook/internal/apperr"
	"github.com/deidaraiorek/openbook/internal/index"
	"github.com/deidaraiorek/openbook/internal/logger"
	"github.com/deidaraiorek/openbook/internal/storage"
)

const (
	// DefaultLimit applies when the caller sends no limit or a
	// non-positive one.
	DefaultLimit = 10
	// MaxLimit is the hard ceiling; larger caller values are clamped.
	MaxLimit = 100
)

// Request is one search call. Exactly one of Title and Author must be set
// (nil means absent). UserID of zero means no list-status join; every book
// reads as "unread".
type Request struct {
	Title  *string
	Author *string
	UserID int64
	Limit  int
	Offset int
}

type Service struct {
	store *storage.Store
	idx   *index.SQLite
	log   *slog.Logger
}

// New builds a Service over the store's own index binding, which guarantees
// query-side tokenization matches index-side tokenization.
func New(store *storage.Store) *Service {
	return &Service{
		store: store,
		idx:   store.Index(),
		log:   logger.WithComponent("search"),
	}
}

// Search runs a title-mode or author-mode query and returns ranked books
// joined with their current authors and list status. The join preserves the
// index ranking order. A query that tokenizes to nothing (punctuation only)
// returns an empty result, not an error.
func (s *Service) Search(ctx context.Context, req Request) ([]storage.Book, error) {
	raw, corpus, err := mode(req)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	tokens := s.idx.Analyzer().Tokenize(raw)
	if len(tokens) == 0 {
		return []storage.Book{}, nil
	}

	hits, err := s.idx.Search(ctx, corpus, tokens, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.DocID
	}

	var books []storage.Book
	switch corpus {
	case index.CorpusBook:
		books, err = s.store.BooksByIDs(ctx, ids, req.UserID)
	case index.CorpusAuthor:
		books, err = s.store.BooksOfAuthors(ctx, ids, req.UserID)
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug("search executed",
		"corpus", corpus, "query", raw, "tokens", tokens, "results", len(books))
	return books, nil
}

// mode enforces the two-mode contract: exactly one of title/author, and the
// chosen query must be non-empty.
func mode(req Request) (string, string, error) {
	switch {
	case req.Title != nil && req.Author != nil:
		return "", "", apperr.New(apperr.ErrInvalidQuery, "title and author are mutually exclusive")
	case req.Title != nil:
		if *req.Title == "" {
			return "", "", apperr.New(apperr.ErrInvalidQuery, "empty title query")
		}
		return *req.Title, index.CorpusBook, nil
	case req.Author != nil:
		if *req.Author == "" {
			return "", "", apperr.New(apperr.ErrInvalidQuery, "empty author query")
		}
		return *req.Author, index.CorpusAuthor, nil
	default:
		return "", "", apperr.New(apperr.ErrInvalidQuery, "one of title or author is required")
	}
}
