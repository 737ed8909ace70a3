// Package storage owns the SQLite database: the catalog tables (book,
// author, their joins, user reading lists) and, through internal/index, the
// search index tables. Every mutating call wraps the row change and the
// matching index operation in one transaction, so the index is never stale
// relative to a committed row.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deidaraiorek/openbook/internal/analyzer"
	"github.com/deidaraiorek/openbook/internal/index"
	"github.com/deidaraiorek/openbook/internal/logger"
)

type BookStatus string

const (
	StatusRecommended BookStatus = "recommended"
	StatusReading     BookStatus = "reading"
	StatusCompleted   BookStatus = "completed"

	// StatusUnread is the implicit state of a book with no user_book row.
	// It is never stored.
	StatusUnread BookStatus = "unread"
)

type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Book struct {
	ID      int64      `json:"id"`
	ISBN    string     `json:"isbn"`
	Title   string     `json:"title"`
	Authors []Author   `json:"authors"`
	Status  BookStatus `json:"status"`
}

type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Store struct {
	db  *sql.DB
	idx *index.SQLite
	log *slog.Logger
}

// Open opens (creating if needed) the database at path and binds the search
// index to it with the given analyzer. One Store is constructed at process
// start and shared by reference; Close tears it down at shutdown.
func Open(path string, an *analyzer.Analyzer) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them;
	// foreign_keys in particular is per-connection state.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	s := &Store{
		db:  db,
		idx: index.NewSQLite(db, an, index.CorpusBook, index.CorpusAuthor),
		log: logger.WithComponent("storage"),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	if _, err := s.db.Exec(index.Schema); err != nil {
		return fmt.Errorf("creating index schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Index returns the search index bound to this database, for read paths.
func (s *Store) Index() *index.SQLite {
	return s.idx
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn in a transaction, rolling back on error.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed (%v) after: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
