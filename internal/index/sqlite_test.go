package index_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deidaraiorek/openbook/internal/analyzer"
	"github.com/deidaraiorek/openbook/internal/apperr"
	"github.com/deidaraiorek/openbook/internal/index"
)

func newSQLite(t *testing.T) (*index.SQLite, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(index.Schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return index.NewSQLite(db, analyzer.New(false), index.CorpusBook, index.CorpusAuthor), db
}

func TestSQLiteAddSearch(t *testing.T) {
	ctx := context.Background()
	idx, _ := newSQLite(t)

	if err := idx.Add(ctx, index.CorpusBook, 1, "Test Book 1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	hits, err := idx.Search(ctx, index.CorpusBook, []string{"test"}, 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].DocID != 1 {
		t.Errorf("Search = %v, want single hit for doc 1", hits)
	}

	hits, err = idx.Search(ctx, index.CorpusBook, []string{"absent"}, 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Search for absent token = %v, want empty", hits)
	}
}

func TestSQLiteUpdateRemove(t *testing.T) {
	ctx := context.Background()
	idx, _ := newSQLite(t)

	idx.Add(ctx, index.CorpusBook, 1, "Test Book")
	if err := idx.Update(ctx, index.CorpusBook, 1, "Renamed"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	hits, _ := idx.Search(ctx, index.CorpusBook, []string{"test"}, 10, 0)
	if len(hits) != 0 {
		t.Errorf("old token still matches after update: %v", hits)
	}
	hits, _ = idx.Search(ctx, index.CorpusBook, []string{"renamed"}, 10, 0)
	if len(hits) != 1 {
		t.Errorf("new token does not match after update: %v", hits)
	}

	if err := idx.Remove(ctx, index.CorpusBook, 1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	hits, _ = idx.Search(ctx, index.CorpusBook, []string{"renamed"}, 10, 0)
	if len(hits) != 0 {
		t.Errorf("removed doc still matches: %v", hits)
	}

	if err := idx.Remove(ctx, index.CorpusBook, 42); err != nil {
		t.Errorf("Remove of unknown doc = %v, want nil", err)
	}
}

func TestSQLiteWithTxRollback(t *testing.T) {
	ctx := context.Background()
	idx, db := newSQLite(t)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := idx.WithTx(tx).Add(ctx, index.CorpusBook, 1, "Phantom Book"); err != nil {
		t.Fatalf("Add in tx failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	hits, err := idx.Search(ctx, index.CorpusBook, []string{"phantom"}, 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("rolled-back postings visible: %v", hits)
	}
}

func TestSQLiteMatchesMemory(t *testing.T) {
	ctx := context.Background()
	sqliteIdx, _ := newSQLite(t)
	memIdx := newMemory()

	docs := map[int64]string{
		1: "the lonely wolf",
		2: "wolf wolf wolf den",
		3: "sheep and wolf wolf",
		4: "sheep pasture",
	}
	for id, title := range docs {
		if err := sqliteIdx.Add(ctx, index.CorpusBook, id, title); err != nil {
			t.Fatalf("sqlite Add failed: %v", err)
		}
		if err := memIdx.Add(ctx, index.CorpusBook, id, title); err != nil {
			t.Fatalf("memory Add failed: %v", err)
		}
	}

	for _, tokens := range [][]string{{"wolf"}, {"sheep"}, {"wolf", "sheep"}, {"wolf", "wolf"}} {
		fromSQLite, err := sqliteIdx.Search(ctx, index.CorpusBook, tokens, 10, 0)
		if err != nil {
			t.Fatalf("sqlite Search(%v) failed: %v", tokens, err)
		}
		fromMemory, err := memIdx.Search(ctx, index.CorpusBook, tokens, 10, 0)
		if err != nil {
			t.Fatalf("memory Search(%v) failed: %v", tokens, err)
		}
		if len(fromSQLite) != len(fromMemory) {
			t.Fatalf("Search(%v): sqlite %d hits, memory %d hits", tokens, len(fromSQLite), len(fromMemory))
		}
		for i := range fromSQLite {
			if fromSQLite[i].DocID != fromMemory[i].DocID {
				t.Errorf("Search(%v)[%d]: sqlite doc %d, memory doc %d",
					tokens, i, fromSQLite[i].DocID, fromMemory[i].DocID)
			}
		}
	}
}

func TestSQLitePagination(t *testing.T) {
	ctx := context.Background()
	idx, _ := newSQLite(t)

	for id := int64(1); id <= 3; id++ {
		idx.Add(ctx, index.CorpusBook, id, "book")
	}

	page, err := idx.Search(ctx, index.CorpusBook, []string{"book"}, 2, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("first page has %d hits, want 2", len(page))
	}

	page, _ = idx.Search(ctx, index.CorpusBook, []string{"book"}, 2, 2)
	if len(page) != 1 {
		t.Errorf("second page has %d hits, want 1", len(page))
	}

	page, _ = idx.Search(ctx, index.CorpusBook, []string{"book"}, 2, 3)
	if len(page) != 0 {
		t.Errorf("page past end has %d hits, want 0", len(page))
	}
}

func TestSQLiteResetAndPostings(t *testing.T) {
	ctx := context.Background()
	idx, _ := newSQLite(t)

	idx.Add(ctx, index.CorpusBook, 1, "alpha beta")
	idx.Add(ctx, index.CorpusBook, 2, "beta gamma")
	idx.Add(ctx, index.CorpusAuthor, 1, "alpha")

	postings, err := idx.Postings(ctx, index.CorpusBook)
	if err != nil {
		t.Fatalf("Postings failed: %v", err)
	}
	if len(postings) != 4 {
		t.Errorf("got %d book postings, want 4", len(postings))
	}

	if err := idx.Reset(ctx, index.CorpusBook); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	postings, err = idx.Postings(ctx, index.CorpusBook)
	if err != nil {
		t.Fatalf("Postings after reset failed: %v", err)
	}
	if len(postings) != 0 {
		t.Errorf("book corpus not empty after reset: %v", postings)
	}

	// The author corpus is independent and must survive the reset.
	postings, err = idx.Postings(ctx, index.CorpusAuthor)
	if err != nil {
		t.Fatalf("Postings for author corpus failed: %v", err)
	}
	if len(postings) != 1 {
		t.Errorf("author corpus postings = %v, want 1", postings)
	}
}

func TestSQLiteUnknownCorpus(t *testing.T) {
	ctx := context.Background()
	idx, _ := newSQLite(t)

	if err := idx.Add(ctx, "magazine", 1, "text"); !errors.Is(err, apperr.ErrCorpusNotFound) {
		t.Errorf("Add to unknown corpus = %v, want ErrCorpusNotFound", err)
	}
	if _, err := idx.Search(ctx, "magazine", []string{"text"}, 10, 0); !errors.Is(err, apperr.ErrCorpusNotFound) {
		t.Errorf("Search of unknown corpus = %v, want ErrCorpusNotFound", err)
	}
}
