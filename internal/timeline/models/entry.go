package models

import (
	"time"

	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// EventType tags a timeline entry. The set is open: automation rules may add
// their own tags, so only emptiness is validated.
type EventType string

const (
	EventApplicationStarted     EventType = "application_started"
	EventApplicationSubmitted   EventType = "application_submitted"
	EventApplicationResubmitted EventType = "application_resubmitted"
	EventApplicationCancelled   EventType = "application_cancelled"
	EventApplicationDeleted     EventType = "application_deleted"
	EventStatusChanged          EventType = "status_changed"
	EventInfoRequested          EventType = "info_requested"
	EventWorkflowAutoApproved   EventType = "workflow_auto_approved"
)

// Entry is one immutable line of a case's audit trail.
//
// Invariants:
//   - TenantID, CaseID, EventType, Description are required
//   - CreatedAt is set exactly once, at append time
//   - entries are never updated or deleted
type Entry struct {
	ID          domain.EntryID  `json:"id"`
	TenantID    domain.TenantID `json:"tenant_id"`
	CaseID      domain.CaseID   `json:"case_id"`
	EventType   EventType       `json:"event_type"`
	Description string          `json:"description"`
	PerformedBy *domain.UserID  `json:"performed_by,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewEntry validates and builds an entry stamped with now.
func NewEntry(tenantID domain.TenantID, caseID domain.CaseID, eventType EventType, description string, performedBy *domain.UserID, metadata map[string]any, now time.Time) (*Entry, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "timeline entry requires a tenant")
	}
	if caseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "timeline entry requires a case")
	}
	if eventType == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "timeline entry requires an event type")
	}
	if description == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "timeline entry requires a description")
	}
	return &Entry{
		TenantID:    tenantID,
		CaseID:      caseID,
		EventType:   eventType,
		Description: description,
		PerformedBy: performedBy,
		Metadata:    metadata,
		CreatedAt:   now,
	}, nil
}
