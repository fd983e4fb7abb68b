// Package runlock keeps two apply-mode automation runs for the same tenant
// from overlapping. Dry runs never take the lock.
package runlock

import (
	"context"
	"sync"

	"caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// Locker grants exclusive per-tenant run leases. Acquire returns
// sentinel.ErrConflict when another run holds the lease.
type Locker interface {
	Acquire(ctx context.Context, tenantID domain.TenantID) (Release, error)
}

// Release gives the lease back. Releasing twice is a no-op.
type Release func(ctx context.Context) error

// Memory is an in-process Locker for single-instance deployments and tests.
type Memory struct {
	mu   sync.Mutex
	held map[domain.TenantID]uint64
	seq  uint64
}

func NewMemory() *Memory {
	return &Memory{held: make(map[domain.TenantID]uint64)}
}

func (m *Memory) Acquire(_ context.Context, tenantID domain.TenantID) (Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[tenantID]; ok {
		return nil, sentinel.ErrConflict
	}
	m.seq++
	token := m.seq
	m.held[tenantID] = token
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.held[tenantID] == token {
			delete(m.held, tenantID)
		}
		return nil
	}, nil
}
