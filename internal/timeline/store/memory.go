package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"caseflow/internal/timeline/models"
	"caseflow/pkg/domain"
)

// InMemory is a process-local timeline. It implements uow.Participant so a
// failed unit of work drops every entry appended inside it.
type InMemory struct {
	mu      sync.RWMutex
	entries []*models.Entry
	nextID  domain.EntryID
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry.ID = s.nextID
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

func (s *InMemory) ListByCase(_ context.Context, tenantID domain.TenantID, caseID domain.CaseID) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Entry, 0)
	for _, e := range s.entries {
		if e.TenantID == tenantID && e.CaseID == caseID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) CountByCase(_ context.Context, tenantID domain.TenantID, caseID domain.CaseID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.TenantID == tenantID && e.CaseID == caseID {
			n++
		}
	}
	return n, nil
}

type memorySnapshot struct {
	n      int
	nextID domain.EntryID
}

// Snapshot captures the log length; entries are append-only so truncation restores.
func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memorySnapshot{n: len(s.entries), nextID: s.nextID}
}

func (s *InMemory) Restore(snapshot any) {
	snap := snapshot.(memorySnapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:snap.n]
	s.nextID = snap.nextID
}

func cloneEntry(e *models.Entry) *models.Entry {
	c := *e
	if e.PerformedBy != nil {
		by := *e.PerformedBy
		c.PerformedBy = &by
	}
	if e.Metadata != nil {
		c.Metadata = maps.Clone(e.Metadata)
	}
	return &c
}
