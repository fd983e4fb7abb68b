package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"caseflow/internal/cases/models"
	"caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// InMemory stores cases with their vehicles, documents, and payments. Reads
// return hydrated deep copies. It implements uow.Participant.
type InMemory struct {
	mu        sync.RWMutex
	cases     map[domain.CaseID]*models.Case
	vehicles  map[domain.VehicleID]models.Vehicle
	documents []models.Document
	payments  []models.Payment
	nextCase  domain.CaseID
	nextDoc   domain.DocumentID
	nextPay   domain.PaymentID
	nextVeh   domain.VehicleID
}

func NewInMemory() *InMemory {
	return &InMemory{
		cases:    make(map[domain.CaseID]*models.Case),
		vehicles: make(map[domain.VehicleID]models.Vehicle),
	}
}

func (s *InMemory) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cases {
		if existing.TenantID == c.TenantID && existing.CaseNumber == c.CaseNumber {
			return sentinel.ErrConflict
		}
	}
	s.nextCase++
	c.ID = s.nextCase
	s.cases[c.ID] = stripViews(c)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID domain.TenantID, id domain.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok || c.TenantID != tenantID || c.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	return s.hydrate(c), nil
}

// FindByIDForUpdate is FindByID; the unit of work already holds the store lock.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, tenantID domain.TenantID, id domain.CaseID) (*models.Case, error) {
	return s.FindByID(ctx, tenantID, id)
}

func (s *InMemory) Update(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.cases[c.ID]
	if !ok || existing.TenantID != c.TenantID || existing.IsDeleted() {
		return sentinel.ErrNotFound
	}
	s.cases[c.ID] = stripViews(c)
	return nil
}

func (s *InMemory) ListCandidates(_ context.Context, tenantID domain.TenantID, q models.CandidateQuery) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Case
	for _, c := range s.cases {
		if c.TenantID != tenantID || c.IsDeleted() || c.Status != q.Status {
			continue
		}
		if q.ServiceType != "" && c.ServiceType != q.ServiceType {
			continue
		}
		matched = append(matched, c)
	}
	slices.SortFunc(matched, compareSubmitted)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]*models.Case, 0, len(matched))
	for _, c := range matched {
		out = append(out, s.hydrate(c))
	}
	return out, nil
}

func (s *InMemory) SaveVehicle(_ context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == 0 {
		s.nextVeh++
		v.ID = s.nextVeh
	}
	s.vehicles[v.ID] = *v
	return nil
}

func (s *InMemory) AddDocument(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[d.CaseID]; !ok {
		return sentinel.ErrNotFound
	}
	s.nextDoc++
	d.ID = s.nextDoc
	s.documents = append(s.documents, *d)
	return nil
}

func (s *InMemory) AddPayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[p.CaseID]; !ok {
		return sentinel.ErrNotFound
	}
	s.nextPay++
	p.ID = s.nextPay
	s.payments = append(s.payments, *p)
	return nil
}

// hydrate must be called with the lock held.
func (s *InMemory) hydrate(c *models.Case) *models.Case {
	out := c.Clone()
	if c.VehicleID != nil {
		if v, ok := s.vehicles[*c.VehicleID]; ok && v.TenantID == c.TenantID {
			out.Vehicle = &v
		}
	}
	for _, d := range s.documents {
		if d.CaseID == c.ID {
			out.Documents = append(out.Documents, d)
		}
	}
	for _, p := range s.payments {
		if p.CaseID == c.ID {
			out.Payments = append(out.Payments, p)
		}
	}
	return out
}

func stripViews(c *models.Case) *models.Case {
	out := c.Clone()
	out.Vehicle = nil
	out.Documents = nil
	out.Payments = nil
	return out
}

func compareSubmitted(a, b *models.Case) int {
	switch {
	case a.SubmittedAt == nil && b.SubmittedAt != nil:
		return 1
	case a.SubmittedAt != nil && b.SubmittedAt == nil:
		return -1
	case a.SubmittedAt != nil && b.SubmittedAt != nil:
		if c := a.SubmittedAt.Compare(*b.SubmittedAt); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID, b.ID)
}

type memorySnapshot struct {
	cases     map[domain.CaseID]*models.Case
	vehicles  map[domain.VehicleID]models.Vehicle
	documents []models.Document
	payments  []models.Payment
	nextCase  domain.CaseID
	nextDoc   domain.DocumentID
	nextPay   domain.PaymentID
	nextVeh   domain.VehicleID
}

func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cases := make(map[domain.CaseID]*models.Case, len(s.cases))
	for id, c := range s.cases {
		cases[id] = c.Clone()
	}
	return memorySnapshot{
		cases:     cases,
		vehicles:  maps.Clone(s.vehicles),
		documents: slices.Clone(s.documents),
		payments:  slices.Clone(s.payments),
		nextCase:  s.nextCase,
		nextDoc:   s.nextDoc,
		nextPay:   s.nextPay,
		nextVeh:   s.nextVeh,
	}
}

func (s *InMemory) Restore(snapshot any) {
	snap := snapshot.(memorySnapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = snap.cases
	s.vehicles = snap.vehicles
	s.documents = snap.documents
	s.payments = snap.payments
	s.nextCase, s.nextDoc, s.nextPay, s.nextVeh = snap.nextCase, snap.nextDoc, snap.nextPay, snap.nextVeh
}
