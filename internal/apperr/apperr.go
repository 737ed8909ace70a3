// Package apperr defines the error taxonomy shared across the service and
// its mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidQuery is returned for malformed search requests: both or
	// neither of the title/author modes set, or an empty query string.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound is returned when a referenced book or author row does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrIndexConsistency marks an index operation that failed inside a
	// write transaction. The enclosing transaction must abort so the
	// primary store and the index never diverge on committed rows.
	ErrIndexConsistency = errors.New("index update failed")

	// ErrCorpusNotFound marks a reference to an unregistered index
	// corpus. This is a programming error, never expected in operation.
	ErrCorpusNotFound = errors.New("unknown corpus")
)

type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(sentinel error, format string, args ...any) *Error {
	return &Error{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
