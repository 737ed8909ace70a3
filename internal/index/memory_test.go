package index_test

import (
	"context"
	"errors"
	"testing"

	"github.com/deidaraiorek/openbook/internal/analyzer"
	"github.com/deidaraiorek/openbook/internal/apperr"
	"github.com/deidaraiorek/openbook/internal/index"
)

func newMemory() *index.Memory {
	return index.NewMemory(analyzer.New(false), index.CorpusBook, index.CorpusAuthor)
}

func TestMemoryAddSearch(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

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

	hits, err = idx.Search(ctx, index.CorpusBook, []string{"missing"}, 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Search for absent token = %v, want empty", hits)
	}
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

	idx.Add(ctx, index.CorpusBook, 1, "Test Book")
	if err := idx.Update(ctx, index.CorpusBook, 1, "Renamed"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	hits, _ := idx.Search(ctx, index.CorpusBook, []string{"test"}, 10, 0)
	if len(hits) != 0 {
		t.Errorf("old token still matches after update: %v", hits)
	}
	hits, _ = idx.Search(ctx, index.CorpusBook, []string{"renamed"}, 10, 0)
	if len(hits) != 1 || hits[0].DocID != 1 {
		t.Errorf("new token does not match after update: %v", hits)
	}
}

func TestMemoryRemove(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

	idx.Add(ctx, index.CorpusBook, 1, "Test Book")
	if err := idx.Remove(ctx, index.CorpusBook, 1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	hits, _ := idx.Search(ctx, index.CorpusBook, []string{"test"}, 10, 0)
	if len(hits) != 0 {
		t.Errorf("removed doc still matches: %v", hits)
	}

	// Removing a never-indexed doc is a no-op, not an error.
	if err := idx.Remove(ctx, index.CorpusBook, 99); err != nil {
		t.Errorf("Remove of unknown doc = %v, want nil", err)
	}
}

func TestMemoryRankingOrder(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

	idx.Add(ctx, index.CorpusBook, 1, "wolf")
	idx.Add(ctx, index.CorpusBook, 2, "wolf wolf wolf")
	idx.Add(ctx, index.CorpusBook, 3, "wolf wolf")

	hits, err := idx.Search(ctx, index.CorpusBook, []string{"wolf"}, 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := []int64{2, 3, 1}
	if len(hits) != len(want) {
		t.Fatalf("got %d hits, want %d", len(hits), len(want))
	}
	for i, id := range want {
		if hits[i].DocID != id {
			t.Errorf("hits[%d].DocID = %d, want %d (higher term frequency ranks first)", i, hits[i].DocID, id)
		}
	}
}

func TestMemoryTieBreak(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

	// Insert out of id order; equal scores must come back ascending by id.
	idx.Add(ctx, index.CorpusBook, 3, "wolf")
	idx.Add(ctx, index.CorpusBook, 1, "wolf")
	idx.Add(ctx, index.CorpusBook, 2, "wolf")

	for run := 0; run < 5; run++ {
		hits, err := idx.Search(ctx, index.CorpusBook, []string{"wolf"}, 10, 0)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		for i, want := range []int64{1, 2, 3} {
			if hits[i].DocID != want {
				t.Fatalf("run %d: hits[%d].DocID = %d, want %d", run, i, hits[i].DocID, want)
			}
		}
	}
}

func TestMemoryMultiTokenAnd(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

	idx.Add(ctx, index.CorpusBook, 1, "war and peace")
	idx.Add(ctx, index.CorpusBook, 2, "war stories")
	idx.Add(ctx, index.CorpusBook, 3, "peace treaties")

	hits, err := idx.Search(ctx, index.CorpusBook, []string{"war", "peace"}, 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].DocID != 1 {
		t.Errorf("multi-token search = %v, want only doc 1", hits)
	}
}

func TestMemoryPagination(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

	for id := int64(1); id <= 5; id++ {
		idx.Add(ctx, index.CorpusBook, id, "book")
	}

	full, err := idx.Search(ctx, index.CorpusBook, []string{"book"}, 0, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(full) != 5 {
		t.Fatalf("got %d hits, want 5", len(full))
	}

	// Pages of two concatenate to the full ranked sequence with no
	// duplicates or gaps.
	var paged []index.Hit
	for offset := 0; offset < 6; offset += 2 {
		page, err := idx.Search(ctx, index.CorpusBook, []string{"book"}, 2, offset)
		if err != nil {
			t.Fatalf("Search at offset %d failed: %v", offset, err)
		}
		paged = append(paged, page...)
	}
	if len(paged) != len(full) {
		t.Fatalf("paged total %d, want %d", len(paged), len(full))
	}
	for i := range full {
		if paged[i].DocID != full[i].DocID {
			t.Errorf("paged[%d].DocID = %d, want %d", i, paged[i].DocID, full[i].DocID)
		}
	}

	past, err := idx.Search(ctx, index.CorpusBook, []string{"book"}, 2, 10)
	if err != nil {
		t.Fatalf("Search past end failed: %v", err)
	}
	if len(past) != 0 {
		t.Errorf("offset past end = %v, want empty", past)
	}
}

func TestMemoryCorpusSeparation(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

	idx.Add(ctx, index.CorpusBook, 1, "orwell diaries")
	idx.Add(ctx, index.CorpusAuthor, 7, "George Orwell")

	hits, _ := idx.Search(ctx, index.CorpusAuthor, []string{"orwell"}, 10, 0)
	if len(hits) != 1 || hits[0].DocID != 7 {
		t.Errorf("author corpus search = %v, want only author 7", hits)
	}
}

func TestMemoryUnknownCorpus(t *testing.T) {
	ctx := context.Background()
	idx := newMemory()

	if err := idx.Add(ctx, "magazine", 1, "text"); !errors.Is(err, apperr.ErrCorpusNotFound) {
		t.Errorf("Add to unknown corpus = %v, want ErrCorpusNotFound", err)
	}
	if _, err := idx.Search(ctx, "magazine", []string{"text"}, 10, 0); !errors.Is(err, apperr.ErrCorpusNotFound) {
		t.Errorf("Search of unknown corpus = %v, want ErrCorpusNotFound", err)
	}
}
