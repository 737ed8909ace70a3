package storage

import (
	"context"
	"fmt"

	"github.com/deidaraiorek/openbook/internal/apperr"
)

func (s *Store) CreateUser(ctx context.Context, email, name string) (*User, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO user (email, name) VALUES (?, ?)", email, name,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Email: email, Name: name}, nil
}

// SetBookStatus upserts the user's list entry for a book. List membership
// is not indexed text, so no index operation runs here.
func (s *Store) SetBookStatus(ctx context.Context, userID, bookID int64, status BookStatus) error {
	if status == StatusUnread {
		return s.ClearBookStatus(ctx, userID, bookID)
	}
	if status != StatusRecommended && status != StatusReading && status != StatusCompleted {
		return apperr.New(apperr.ErrInvalidQuery, "status %q", status)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_book (user_id, book_id, status) VALUES (?, ?, ?)
		ON CONFLICT (user_id, book_id) DO UPDATE SET status = excluded.status`,
		userID, bookID, string(status),
	)
	if err != nil {
		return fmt.Errorf("setting status of book %d for user %d: %w", bookID, userID, err)
	}
	return nil
}

// ClearBookStatus drops the list entry, returning the book to the implicit
// "unread" state.
func (s *Store) ClearBookStatus(ctx context.Context, userID, bookID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_book WHERE user_id = ? AND book_id = ?", userID, bookID,
	)
	if err != nil {
		return fmt.Errorf("clearing status of book %d for user %d: %w", bookID, userID, err)
	}
	return nil
}
