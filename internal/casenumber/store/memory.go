package store

import (
	"context"
	"maps"
	"sync"

	"caseflow/pkg/domain"
)

type counterKey struct {
	tenantID domain.TenantID
	year     int
}

// InMemory keeps per-tenant yearly counters behind a mutex.
type InMemory struct {
	mu       sync.Mutex
	counters map[counterKey]int64
}

func NewInMemory() *InMemory {
	return &InMemory{counters: make(map[counterKey]int64)}
}

func (s *InMemory) NextSequence(_ context.Context, tenantID domain.TenantID, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{tenantID: tenantID, year: year}
	s.counters[key]++
	return s.counters[key], nil
}

func (s *InMemory) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.counters)
}

func (s *InMemory) Restore(snapshot any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = snapshot.(map[counterKey]int64)
}
