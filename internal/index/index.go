// Package index implements the inverted index: token → posting list per
// corpus, with TF-IDF ranking. Two backings exist with identical search
// semantics: Memory (tests, reference behavior) and SQLite (production,
// transactional with the primary store).
package index

import (
	"context"
	"math"
	"sort"
)

// The two corpora maintained by the service.
const (
	CorpusBook   = "book"
	CorpusAuthor = "author"
)

// Hit is one ranked search match.
type Hit struct {
	DocID int64
	Score float64
}

// Posting is one (term, document, frequency) association. Used by the
// rebuild path and consistency checks.
type Posting struct {
	Term      string
	DocID     int64
	Frequency int
}

// Store is the inverted index contract. Add without a prior Remove for the
// same document is a caller error. Remove of an unindexed document is a
// no-op. Update is remove+add as one logically atomic step.
type Store interface {
	Add(ctx context.Context, corpus string, docID int64, fields ...string) error
	Remove(ctx context.Context, corpus string, docID int64) error
	Update(ctx context.Context, corpus string, docID int64, fields ...string) error
	Search(ctx context.Context, corpus string, tokens []string, limit, offset int) ([]Hit, error)
}

// postingList maps document id to term frequency for a single term.
type postingList map[int64]int

// rank intersects the per-term posting lists (documents must contain every
// term), scores candidates by summed TF-IDF, and orders by descending score
// with ascending doc id as the tie-break. limit <= 0 means no limit.
func rank(lists []postingList, totalDocs, limit, offset int) []Hit {
	if len(lists) == 0 {
		return []Hit{}
	}

	shortest := lists[0]
	for _, pl := range lists[1:] {
		if len(pl) < len(shortest) {
			shortest = pl
		}
	}

	candidates := make(map[int64]struct{}, len(shortest))
	for docID := range shortest {
		candidates[docID] = struct{}{}
	}
	for _, pl := range lists {
		for docID := range candidates {
			if _, ok := pl[docID]; !ok {
				delete(candidates, docID)
			}
		}
	}

	hits := make([]Hit, 0, len(candidates))
	for docID := range candidates {
		score := 0.0
		for _, pl := range lists {
			idf := math.Log(1 + float64(totalDocs)/float64(len(pl)))
			score += float64(pl[docID]) * idf
		}
		hits = append(hits, Hit{DocID: docID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(hits) {
		return []Hit{}
	}
	hits = hits[offset:]
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// dedupe drops repeated query tokens; a term ANDed with itself adds
// nothing and would double-count its score.
func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
