package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"caseflow/internal/workflow/models"
	"caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// InMemory is a process-local rule registry. It implements uow.Participant.
type InMemory struct {
	mu     sync.RWMutex
	rules  map[domain.RuleID]*models.Rule
	nextID domain.RuleID
}

func NewInMemory() *InMemory {
	return &InMemory{rules: make(map[domain.RuleID]*models.Rule)}
}

// ListActive returns the tenant's active rules by ascending id, optionally
// restricted to keys.
func (s *InMemory) ListActive(_ context.Context, tenantID domain.TenantID, keys []string) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Rule, 0)
	for _, r := range s.rules {
		if r.TenantID != tenantID || !r.IsActive {
			continue
		}
		if len(keys) > 0 && !slices.Contains(keys, r.Key) {
			continue
		}
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Rule) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemory) FindByKey(_ context.Context, tenantID domain.TenantID, key string) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.Key == key {
			return r.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Upsert inserts a rule or replaces the definition of the existing
// (tenant, key) row. Run statistics are preserved on update.
func (s *InMemory) Upsert(_ context.Context, rule *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rules {
		if existing.TenantID == rule.TenantID && existing.Key == rule.Key {
			existing.Name = rule.Name
			existing.Description = rule.Description
			existing.IsActive = rule.IsActive
			existing.Config = append([]byte(nil), rule.Config...)
			existing.UpdatedBy = rule.UpdatedBy
			existing.UpdatedAt = rule.UpdatedAt
			rule.ID = existing.ID
			rule.RunCount = existing.RunCount
			rule.LastRunAt = existing.LastRunAt
			return nil
		}
	}
	s.nextID++
	rule.ID = s.nextID
	s.rules[rule.ID] = rule.Clone()
	return nil
}

func (s *InMemory) RecordRun(_ context.Context, tenantID domain.TenantID, ruleID domain.RuleID, actorID domain.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok || r.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	r.RunCount++
	r.LastRunAt = &at
	r.UpdatedBy = &actorID
	r.UpdatedAt = at
	return nil
}

type memorySnapshot struct {
	rules  map[domain.RuleID]*models.Rule
	nextID domain.RuleID
}

func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make(map[domain.RuleID]*models.Rule, len(s.rules))
	for id, r := range s.rules {
		rules[id] = r.Clone()
	}
	return memorySnapshot{rules: rules, nextID: s.nextID}
}

func (s *InMemory) Restore(snapshot any) {
	snap := snapshot.(memorySnapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = snap.rules
	s.nextID = snap.nextID
}
