package eventlog

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	sortBySeq(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortBySeq(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })
}
