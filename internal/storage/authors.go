package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/deidaraiorek/openbook/internal/apperr"
	"github.com/deidaraiorek/openbook/internal/index"
)

func (s *Store) CreateAuthor(ctx context.Context, name string) (*Author, error) {
	var author *Author
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "INSERT INTO author (name) VALUES (?)", name)
		if err != nil {
			return fmt.Errorf("inserting author: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}

		if err := s.idx.WithTx(tx).Add(ctx, index.CorpusAuthor, id, name); err != nil {
			return apperr.New(apperr.ErrIndexConsistency, "indexing author %d: %v", id, err)
		}

		author = &Author{ID: id, Name: name}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("author created", "id", author.ID, "name", author.Name)
	return author, nil
}

func (s *Store) UpdateAuthor(ctx context.Context, id int64, name string) (*Author, error) {
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		var oldName string
		err := tx.QueryRowContext(ctx,
			"SELECT name FROM author WHERE id = ?", id,
		).Scan(&oldName)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "author %d", id)
		}
		if err != nil {
			return fmt.Errorf("loading author %d: %w", id, err)
		}

		_, err = tx.ExecContext(ctx, "UPDATE author SET name = ? WHERE id = ?", name, id)
		if err != nil {
			return fmt.Errorf("updating author %d: %w", id, err)
		}

		if name != oldName {
			if err := s.idx.WithTx(tx).Update(ctx, index.CorpusAuthor, id, name); err != nil {
				return apperr.New(apperr.ErrIndexConsistency, "reindexing author %d: %v", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("author updated", "id", id)
	return &Author{ID: id, Name: name}, nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id int64) error {
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM author WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting author %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.New(apperr.ErrNotFound, "author %d", id)
		}

		if err := s.idx.WithTx(tx).Remove(ctx, index.CorpusAuthor, id); err != nil {
			return apperr.New(apperr.ErrIndexConsistency, "unindexing author %d: %v", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("author deleted", "id", id)
	return nil
}

func (s *Store) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	author := &Author{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM author WHERE id = ?", id,
	).Scan(&author.ID, &author.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "author %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading author %d: %w", id, err)
	}
	return author, nil
}

// BooksOfAuthors expands ranked author ids to their books, preserving the
// author order. Within one author, books come back in ascending id order; a
// book by several matched authors appears once, at its first author's rank.
func (s *Store) BooksOfAuthors(ctx context.Context, authorIDs []int64, userID int64) ([]Book, error) {
	seen := make(map[int64]struct{})
	var bookIDs []int64
	for _, authorID := range authorIDs {
		rows, err := s.db.QueryContext(ctx,
			"SELECT book_id FROM author_book WHERE author_id = ? ORDER BY book_id",
			authorID,
		)
		if err != nil {
			return nil, fmt.Errorf("loading books of author %d: %w", authorID, err)
		}
		for rows.Next() {
			var bookID int64
			if err := rows.Scan(&bookID); err != nil {
				rows.Close()
				return nil, err
			}
			if _, ok := seen[bookID]; ok {
				continue
			}
			seen[bookID] = struct{}{}
			bookIDs = append(bookIDs, bookID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return s.BooksByIDs(ctx, bookIDs, userID)
}
