package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/deidaraiorek/openbook/internal/apperr"
	"github.com/deidaraiorek/openbook/internal/index"
)

// ReindexStats reports how many documents a full rebuild indexed.
type ReindexStats struct {
	Books   int `json:"books"`
	Authors int `json:"authors"`
}

// Reindex rebuilds both corpora from the catalog tables in one transaction.
// This is the authoritative consistency repair: concurrent readers see the
// old index until the commit, never a half-built one.
func (s *Store) Reindex(ctx context.Context) (*ReindexStats, error) {
	stats := &ReindexStats{}
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		idx := s.idx.WithTx(tx)

		n, err := rebuildCorpus(ctx, tx, idx, index.CorpusBook,
			"SELECT id, title FROM book ORDER BY id")
		if err != nil {
			return err
		}
		stats.Books = n

		n, err = rebuildCorpus(ctx, tx, idx, index.CorpusAuthor,
			"SELECT id, name FROM author ORDER BY id")
		if err != nil {
			return err
		}
		stats.Authors = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reindex complete", "books", stats.Books, "authors", stats.Authors)
	return stats, nil
}

func rebuildCorpus(ctx context.Context, tx *sql.Tx, idx *index.SQLite, corpus, query string) (int, error) {
	if err := idx.Reset(ctx, corpus); err != nil {
		return 0, apperr.New(apperr.ErrIndexConsistency, "resetting %s corpus: %v", corpus, err)
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("scanning %s rows: %w", corpus, err)
	}
	defer rows.Close()

	type doc struct {
		id   int64
		text string
	}
	var docs []doc
	for rows.Next() {
		var d doc
		if err := rows.Scan(&d.id, &d.text); err != nil {
			return 0, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, d := range docs {
		if err := idx.Add(ctx, corpus, d.id, d.text); err != nil {
			return 0, apperr.New(apperr.ErrIndexConsistency, "reindexing %s %d: %v", corpus, d.id, err)
		}
	}
	return len(docs), nil
}
