// Package timeline is the append-only audit ledger for case lifecycle events.
// It carries no business rules; callers decide what to record and must call
// Append inside the same unit of work as the state change being recorded.
package timeline

import (
	"context"
	"errors"

	"caseflow/internal/timeline/models"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/requestcontext"
)

// Store persists entries. Append must join the transaction carried by ctx.
type Store interface {
	Append(ctx context.Context, entry *models.Entry) error
	ListByCase(ctx context.Context, tenantID domain.TenantID, caseID domain.CaseID) ([]*models.Entry, error)
	CountByCase(ctx context.Context, tenantID domain.TenantID, caseID domain.CaseID) (int, error)
}

// Log is the write-once ledger facade.
type Log struct {
	store Store
}

func NewLog(store Store) *Log {
	return &Log{store: store}
}

// Record is the input to Append.
type Record struct {
	TenantID    domain.TenantID
	CaseID      domain.CaseID
	EventType   models.EventType
	Description string
	PerformedBy *domain.UserID
	Metadata    map[string]any
}

// Append writes one entry stamped with the request-scoped time.
func (l *Log) Append(ctx context.Context, rec Record) (*models.Entry, error) {
	entry, err := models.NewEntry(rec.TenantID, rec.CaseID, rec.EventType, rec.Description, rec.PerformedBy, rec.Metadata, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append timeline entry")
	}
	return entry, nil
}

// List returns a case's entries newest first.
func (l *Log) List(ctx context.Context, tenantID domain.TenantID, caseID domain.CaseID) ([]*models.Entry, error) {
	entries, err := l.store.ListByCase(ctx, tenantID, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return []*models.Entry{}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list timeline")
	}
	return entries, nil
}

// Count returns the number of entries recorded for a case.
func (l *Log) Count(ctx context.Context, tenantID domain.TenantID, caseID domain.CaseID) (int, error) {
	n, err := l.store.CountByCase(ctx, tenantID, caseID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count timeline")
	}
	return n, nil
}
