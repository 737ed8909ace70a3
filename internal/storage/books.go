package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/deidaraiorek/openbook/internal/apperr"
	"github.com/deidaraiorek/openbook/internal/index"
)

// CreateBook inserts a book, associates it with its authors, and adds it to
// the book corpus, all in one transaction. Only the title is indexed; isbn
// is a passthrough column read from the row at query time.
func (s *Store) CreateBook(ctx context.Context, isbn, title string, authorIDs []int64) (*Book, error) {
	var book *Book
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO book (isbn, title) VALUES (?, ?)", isbn, title,
		)
		if err != nil {
			return fmt.Errorf("inserting book: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}

		if err := s.idx.WithTx(tx).Add(ctx, index.CorpusBook, id, title); err != nil {
			return apperr.New(apperr.ErrIndexConsistency, "indexing book %d: %v", id, err)
		}

		if err := replaceBookAuthors(ctx, tx, id, authorIDs); err != nil {
			return err
		}

		book, err = getBook(ctx, tx, id, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("book created", "id", book.ID, "title", book.Title)
	return book, nil
}

// UpdateBook replaces a book's columns and author set. A title change is
// treated as delete+insert against the index, inside the same transaction;
// isbn or author changes touch no postings.
func (s *Store) UpdateBook(ctx context.Context, id int64, isbn, title string, authorIDs []int64) (*Book, error) {
	var book *Book
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		var oldTitle string
		err := tx.QueryRowContext(ctx,
			"SELECT title FROM book WHERE id = ?", id,
		).Scan(&oldTitle)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "book %d", id)
		}
		if err != nil {
			return fmt.Errorf("loading book %d: %w", id, err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE book SET isbn = ?, title = ? WHERE id = ?", isbn, title, id,
		)
		if err != nil {
			return fmt.Errorf("updating book %d: %w", id, err)
		}

		if err := replaceBookAuthors(ctx, tx, id, authorIDs); err != nil {
			return err
		}

		if title != oldTitle {
			if err := s.idx.WithTx(tx).Update(ctx, index.CorpusBook, id, title); err != nil {
				return apperr.New(apperr.ErrIndexConsistency, "reindexing book %d: %v", id, err)
			}
		}

		book, err = getBook(ctx, tx, id, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("book updated", "id", id)
	return book, nil
}

// DeleteBook removes the row (join rows cascade) and its postings in one
// transaction.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM book WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting book %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.New(apperr.ErrNotFound, "book %d", id)
		}

		if err := s.idx.WithTx(tx).Remove(ctx, index.CorpusBook, id); err != nil {
			return apperr.New(apperr.ErrIndexConsistency, "unindexing book %d: %v", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("book deleted", "id", id)
	return nil
}

// GetBook loads a book with its authors and, when userID is non-zero, the
// user's list status. A missing user_book row reads as "unread".
func (s *Store) GetBook(ctx context.Context, id, userID int64) (*Book, error) {
	return getBook(ctx, s.db, id, userID)
}

func getBook(ctx context.Context, q index.Querier, id, userID int64) (*Book, error) {
	book := &Book{Status: StatusUnread}
	err := q.QueryRowContext(ctx,
		"SELECT id, isbn, title FROM book WHERE id = ?", id,
	).Scan(&book.ID, &book.ISBN, &book.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "book %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading book %d: %w", id, err)
	}

	books := []*Book{book}
	if err := fillAuthors(ctx, q, books); err != nil {
		return nil, err
	}
	if err := fillStatuses(ctx, q, books, userID); err != nil {
		return nil, err
	}
	return book, nil
}

// BooksByIDs loads the given books in the given order, skipping ids whose
// rows no longer exist. The caller's ordering (index ranking) is preserved.
func (s *Store) BooksByIDs(ctx context.Context, ids []int64, userID int64) ([]Book, error) {
	if len(ids) == 0 {
		return []Book{}, nil
	}

	query := fmt.Sprintf(
		"SELECT id, isbn, title FROM book WHERE id IN (%s)", placeholders(len(ids)),
	)
	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("loading books: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*Book, len(ids))
	for rows.Next() {
		book := &Book{Status: StatusUnread}
		if err := rows.Scan(&book.ID, &book.ISBN, &book.Title); err != nil {
			return nil, err
		}
		byID[book.ID] = book
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Book, 0, len(ids))
	for _, id := range ids {
		if book, ok := byID[id]; ok {
			ordered = append(ordered, book)
		}
	}
	if err := fillAuthors(ctx, s.db, ordered); err != nil {
		return nil, err
	}
	if err := fillStatuses(ctx, s.db, ordered, userID); err != nil {
		return nil, err
	}

	books := make([]Book, len(ordered))
	for i, book := range ordered {
		books[i] = *book
	}
	return books, nil
}

// ListBooks returns the user's book list ordered by book id, optionally
// filtered to one status.
func (s *Store) ListBooks(ctx context.Context, userID int64, status *BookStatus, skip, limit int) ([]Book, error) {
	query := `
		SELECT b.id, b.isbn, b.title, ub.status
		FROM book b
		JOIN user_book ub ON ub.book_id = b.id
		WHERE ub.user_id = ?`
	args := []any{userID}
	if status != nil {
		query += " AND ub.status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY b.id LIMIT ? OFFSET ?"
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books for user %d: %w", userID, err)
	}
	defer rows.Close()

	var ordered []*Book
	for rows.Next() {
		book := &Book{}
		if err := rows.Scan(&book.ID, &book.ISBN, &book.Title, &book.Status); err != nil {
			return nil, err
		}
		ordered = append(ordered, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := fillAuthors(ctx, s.db, ordered); err != nil {
		return nil, err
	}
	books := make([]Book, len(ordered))
	for i, book := range ordered {
		books[i] = *book
	}
	return books, nil
}

func replaceBookAuthors(ctx context.Context, tx *sql.Tx, bookID int64, authorIDs []int64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM author_book WHERE book_id = ?", bookID)
	if err != nil {
		return fmt.Errorf("clearing authors of book %d: %w", bookID, err)
	}
	for _, authorID := range authorIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO author_book (author_id, book_id) VALUES (?, ?)",
			authorID, bookID,
		)
		if err != nil {
			return fmt.Errorf("associating author %d with book %d: %w", authorID, bookID, err)
		}
	}
	return nil
}

func fillAuthors(ctx context.Context, q index.Querier, books []*Book) error {
	for _, book := range books {
		book.Authors = []Author{}
	}
	if len(books) == 0 {
		return nil
	}

	byID := make(map[int64]*Book, len(books))
	ids := make([]int64, 0, len(books))
	for _, book := range books {
		byID[book.ID] = book
		ids = append(ids, book.ID)
	}

	query := fmt.Sprintf(`
		SELECT ab.book_id, a.id, a.name
		FROM author_book ab
		JOIN author a ON a.id = ab.author_id
		WHERE ab.book_id IN (%s)
		ORDER BY a.id`, placeholders(len(ids)),
	)
	rows, err := q.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("loading authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookID int64
		var author Author
		if err := rows.Scan(&bookID, &author.ID, &author.Name); err != nil {
			return err
		}
		book := byID[bookID]
		book.Authors = append(book.Authors, author)
	}
	return rows.Err()
}

func fillStatuses(ctx context.Context, q index.Querier, books []*Book, userID int64) error {
	if len(books) == 0 || userID == 0 {
		return nil
	}

	byID := make(map[int64]*Book, len(books))
	ids := make([]int64, 0, len(books))
	for _, book := range books {
		byID[book.ID] = book
		ids = append(ids, book.ID)
	}

	query := fmt.Sprintf(
		"SELECT book_id, status FROM user_book WHERE user_id = ? AND book_id IN (%s)",
		placeholders(len(ids)),
	)
	args := append([]any{userID}, int64Args(ids)...)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("loading statuses for user %d: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookID int64
		var status BookStatus
		if err := rows.Scan(&bookID, &status); err != nil {
			return err
		}
		byID[bookID].Status = status
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
