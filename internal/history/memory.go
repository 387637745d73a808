package history

import (
	"context"
	"sort"
	"sync"

	"autopost-go/internal/agent"
)

// MemoryStore is an in-memory agent.HistoryStore. Used in tests and when no
// durable ledger is wanted.
type MemoryStore struct {
	mu      sync.Mutex
	records []*agent.PostRecord
}

var _ agent.HistoryStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) RecordPost(_ context.Context, p *agent.PostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.records = append(s.records, &cp)
	return nil
}

func (s *MemoryStore) RecentByAgent(_ context.Context, agentName string, limit int) ([]*agent.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*agent.PostRecord
	for _, p := range s.records {
		if p.Agent == agentName {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) Close() error { return nil }

// All returns every stored record. For tests.
func (s *MemoryStore) All() []*agent.PostRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*agent.PostRecord{}, s.records...)
}
