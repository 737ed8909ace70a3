package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/deidaraiorek/openbook/internal/analyzer"
	"github.com/deidaraiorek/openbook/internal/apperr"
)

// Schema holds the index-side tables. They live in the same SQLite file as
// the catalog tables so one transaction covers a row mutation and its index
// maintenance.
const Schema = `
-- Terms dictionary: unique terms per corpus
CREATE TABLE IF NOT EXISTS terms (
	term_id INTEGER PRIMARY KEY AUTOINCREMENT,
	corpus TEXT NOT NULL,
	term TEXT NOT NULL,
	UNIQUE (corpus, term)
);

-- Postings list: inverted index mapping terms to documents
CREATE TABLE IF NOT EXISTS postings (
	term_id INTEGER NOT NULL,
	doc_id INTEGER NOT NULL,
	term_frequency INTEGER NOT NULL,
	PRIMARY KEY (term_id, doc_id),
	FOREIGN KEY (term_id) REFERENCES terms(term_id)
);
CREATE INDEX IF NOT EXISTS idx_postings_doc ON postings(doc_id);

-- Per-document statistics, also the corpus membership record
CREATE TABLE IF NOT EXISTS doc_stats (
	corpus TEXT NOT NULL,
	doc_id INTEGER NOT NULL,
	doc_length INTEGER NOT NULL,
	unique_terms INTEGER NOT NULL,
	PRIMARY KEY (corpus, doc_id)
);
`

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite is the persistent index backing, bound to a Querier. Mutations are
// atomic only under an enclosing transaction: obtain a transactional view
// with WithTx and let the caller's commit or rollback cover the postings
// together with the primary-row change.
type SQLite struct {
	q       Querier
	an      *analyzer.Analyzer
	corpora map[string]struct{}
}

func NewSQLite(q Querier, an *analyzer.Analyzer, corpora ...string) *SQLite {
	s := &SQLite{
		q:       q,
		an:      an,
		corpora: make(map[string]struct{}, len(corpora)),
	}
	for _, corpus := range corpora {
		s.corpora[corpus] = struct{}{}
	}
	return s
}

// WithTx returns a view of the same index that executes on tx.
func (s *SQLite) WithTx(tx *sql.Tx) *SQLite {
	return &SQLite{q: tx, an: s.an, corpora: s.corpora}
}

// Analyzer returns the analyzer postings are built with. Queries must
// tokenize through the same one.
func (s *SQLite) Analyzer() *analyzer.Analyzer {
	return s.an
}

func (s *SQLite) checkCorpus(corpus string) error {
	if _, ok := s.corpora[corpus]; !ok {
		return apperr.New(apperr.ErrCorpusNotFound, "%q", corpus)
	}
	return nil
}

func (s *SQLite) Add(ctx context.Context, corpus string, docID int64, fields ...string) error {
	if err := s.checkCorpus(corpus); err != nil {
		return err
	}

	freqs := s.an.Frequencies(fields...)
	length := 0
	for _, freq := range freqs {
		length += freq
	}

	// Documents with no tokens still get a doc_stats row: they count
	// toward the corpus size and stay removable.
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO doc_stats (corpus, doc_id, doc_length, unique_terms) VALUES (?, ?, ?, ?)",
		corpus, docID, length, len(freqs),
	)
	if err != nil {
		return fmt.Errorf("saving doc stats for %s/%d: %w", corpus, docID, err)
	}

	for term, freq := range freqs {
		termID, err := s.getOrCreateTermID(ctx, corpus, term)
		if err != nil {
			return err
		}
		_, err = s.q.ExecContext(ctx,
			"INSERT INTO postings (term_id, doc_id, term_frequency) VALUES (?, ?, ?)",
			termID, docID, freq,
		)
		if err != nil {
			return fmt.Errorf("inserting posting %q for %s/%d: %w", term, corpus, docID, err)
		}
	}
	return nil
}

func (s *SQLite) getOrCreateTermID(ctx context.Context, corpus, term string) (int64, error) {
	var termID int64
	err := s.q.QueryRowContext(ctx,
		"SELECT term_id FROM terms WHERE corpus = ? AND term = ?",
		corpus, term,
	).Scan(&termID)

	if errors.Is(err, sql.ErrNoRows) {
		result, err := s.q.ExecContext(ctx,
			"INSERT INTO terms (corpus, term) VALUES (?, ?)",
			corpus, term,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting term %q: %w", term, err)
		}
		return result.LastInsertId()
	}
	if err != nil {
		return 0, fmt.Errorf("querying term %q: %w", term, err)
	}
	return termID, nil
}

func (s *SQLite) Remove(ctx context.Context, corpus string, docID int64) error {
	if err := s.checkCorpus(corpus); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx,
		"DELETE FROM postings WHERE doc_id = ? AND term_id IN (SELECT term_id FROM terms WHERE corpus = ?)",
		docID, corpus,
	)
	if err != nil {
		return fmt.Errorf("deleting postings for %s/%d: %w", corpus, docID, err)
	}
	_, err = s.q.ExecContext(ctx,
		"DELETE FROM doc_stats WHERE corpus = ? AND doc_id = ?",
		corpus, docID,
	)
	if err != nil {
		return fmt.Errorf("deleting doc stats for %s/%d: %w", corpus, docID, err)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, corpus string, docID int64, fields ...string) error {
	if err := s.Remove(ctx, corpus, docID); err != nil {
		return err
	}
	return s.Add(ctx, corpus, docID, fields...)
}

func (s *SQLite) Search(ctx context.Context, corpus string, tokens []string, limit, offset int) ([]Hit, error) {
	if err := s.checkCorpus(corpus); err != nil {
		return nil, err
	}

	terms := dedupe(tokens)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	var totalDocs int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM doc_stats WHERE corpus = ?", corpus,
	).Scan(&totalDocs)
	if err != nil {
		return nil, fmt.Errorf("counting documents in %s: %w", corpus, err)
	}

	lists := make([]postingList, 0, len(terms))
	for _, term := range terms {
		pl, err := s.postingsForTerm(ctx, corpus, term)
		if err != nil {
			return nil, err
		}
		if len(pl) == 0 {
			// Every term must match; one empty list empties the result.
			return []Hit{}, nil
		}
		lists = append(lists, pl)
	}
	return rank(lists, totalDocs, limit, offset), nil
}

func (s *SQLite) postingsForTerm(ctx context.Context, corpus, term string) (postingList, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT p.doc_id, p.term_frequency
		FROM postings p
		JOIN terms t ON t.term_id = p.term_id
		WHERE t.corpus = ? AND t.term = ?`,
		corpus, term,
	)
	if err != nil {
		return nil, fmt.Errorf("querying postings for %q: %w", term, err)
	}
	defer rows.Close()

	pl := make(postingList)
	for rows.Next() {
		var docID int64
		var freq int
		if err := rows.Scan(&docID, &freq); err != nil {
			return nil, fmt.Errorf("scanning posting for %q: %w", term, err)
		}
		pl[docID] = freq
	}
	return pl, rows.Err()
}

// Reset drops every posting, term, and document record of a corpus. Used by
// the full-reindex recovery path, inside its transaction.
func (s *SQLite) Reset(ctx context.Context, corpus string) error {
	if err := s.checkCorpus(corpus); err != nil {
		return err
	}

	steps := []string{
		"DELETE FROM postings WHERE term_id IN (SELECT term_id FROM terms WHERE corpus = ?)",
		"DELETE FROM terms WHERE corpus = ?",
		"DELETE FROM doc_stats WHERE corpus = ?",
	}
	for _, step := range steps {
		if _, err := s.q.ExecContext(ctx, step, corpus); err != nil {
			return fmt.Errorf("resetting corpus %s: %w", corpus, err)
		}
	}
	return nil
}

// Postings dumps a corpus ordered by term then doc id. The rebuild tests
// compare incremental maintenance against a from-scratch reindex with it.
func (s *SQLite) Postings(ctx context.Context, corpus string) ([]Posting, error) {
	if err := s.checkCorpus(corpus); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT t.term, p.doc_id, p.term_frequency
		FROM postings p
		JOIN terms t ON t.term_id = p.term_id
		WHERE t.corpus = ?
		ORDER BY t.term, p.doc_id`,
		corpus,
	)
	if err != nil {
		return nil, fmt.Errorf("dumping postings for %s: %w", corpus, err)
	}
	defer rows.Close()

	var postings []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.Term, &p.DocID, &p.Frequency); err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}
