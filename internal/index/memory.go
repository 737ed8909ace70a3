package index

import (
	"context"
	"sync"

	"github.com/deidaraiorek/openbook/internal/analyzer"
	"github.com/deidaraiorek/openbook/internal/apperr"
)

type memCorpus struct {
	postings map[string]postingList
	docs     map[int64]struct{}
}

// Memory is an in-process inverted index guarded by a RWMutex. Update is
// atomic under the write lock, so a concurrent Search observes either the
// old postings or the new ones, never the gap in between.
type Memory struct {
	mu      sync.RWMutex
	an      *analyzer.Analyzer
	corpora map[string]*memCorpus
}

func NewMemory(an *analyzer.Analyzer, corpora ...string) *Memory {
	m := &Memory{
		an:      an,
		corpora: make(map[string]*memCorpus, len(corpora)),
	}
	for _, corpus := range corpora {
		m.corpora[corpus] = &memCorpus{
			postings: make(map[string]postingList),
			docs:     make(map[int64]struct{}),
		}
	}
	return m
}

func (m *Memory) Add(ctx context.Context, corpus string, docID int64, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.corpora[corpus]
	if !ok {
		return apperr.New(apperr.ErrCorpusNotFound, "%q", corpus)
	}
	m.add(c, docID, fields)
	return nil
}

func (m *Memory) add(c *memCorpus, docID int64, fields []string) {
	for term, freq := range m.an.Frequencies(fields...) {
		pl, ok := c.postings[term]
		if !ok {
			pl = make(postingList)
			c.postings[term] = pl
		}
		pl[docID] += freq
	}
	c.docs[docID] = struct{}{}
}

func (m *Memory) Remove(ctx context.Context, corpus string, docID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.corpora[corpus]
	if !ok {
		return apperr.New(apperr.ErrCorpusNotFound, "%q", corpus)
	}
	m.remove(c, docID)
	return nil
}

func (m *Memory) remove(c *memCorpus, docID int64) {
	for term, pl := range c.postings {
		delete(pl, docID)
		if len(pl) == 0 {
			delete(c.postings, term)
		}
	}
	delete(c.docs, docID)
}

func (m *Memory) Update(ctx context.Context, corpus string, docID int64, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.corpora[corpus]
	if !ok {
		return apperr.New(apperr.ErrCorpusNotFound, "%q", corpus)
	}
	m.remove(c, docID)
	m.add(c, docID, fields)
	return nil
}

func (m *Memory) Search(ctx context.Context, corpus string, tokens []string, limit, offset int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.corpora[corpus]
	if !ok {
		return nil, apperr.New(apperr.ErrCorpusNotFound, "%q", corpus)
	}

	terms := dedupe(tokens)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	lists := make([]postingList, 0, len(terms))
	for _, term := range terms {
		pl, ok := c.postings[term]
		if !ok {
			return []Hit{}, nil
		}
		lists = append(lists, pl)
	}
	return rank(lists, len(c.docs), limit, offset), nil
}
