package models

import (
	"maps"
	"time"

	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Status is a case lifecycle state.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSubmitted     Status = "submitted"
	StatusUnderReview   Status = "under_review"
	StatusInfoRequested Status = "info_requested"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

var allStatuses = []Status{
	StatusDraft, StatusSubmitted, StatusUnderReview, StatusInfoRequested,
	StatusApproved, StatusRejected, StatusCompleted, StatusCancelled,
}

// AllStatuses lists every lifecycle state in declaration order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown status: "+s)
}

// IsTerminal reports whether no edge leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// ServiceType classifies what the applicant is asking for.
type ServiceType string

const (
	ServiceRenewal          ServiceType = "renewal"
	ServiceNewRegistration  ServiceType = "new_registration"
	ServiceTitleTransfer    ServiceType = "title_transfer"
	ServicePlateReplacement ServiceType = "plate_replacement"
	ServiceDuplicateTitle   ServiceType = "duplicate_title"
)

func ParseServiceType(s string) (ServiceType, error) {
	switch st := ServiceType(s); st {
	case ServiceRenewal, ServiceNewRegistration, ServiceTitleTransfer, ServicePlateReplacement, ServiceDuplicateTitle:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown service type: "+s)
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority defaults an empty value to normal.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case "":
		return PriorityNormal, nil
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown priority: "+s)
}

// Case is an application moving through the lifecycle.
//
// Invariants:
//   - CaseNumber is assigned once at creation and never changes
//   - Status only moves along the edges in transitions.go
//   - DeletedAt is only ever set while Status is draft
//
// Vehicle, Documents, and Payments are read-side views hydrated by the store.
type Case struct {
	ID                      domain.CaseID     `json:"id"`
	TenantID                domain.TenantID   `json:"tenant_id"`
	CaseNumber              string            `json:"case_number"`
	OwnerID                 domain.UserID     `json:"owner_id"`
	VehicleID               *domain.VehicleID `json:"vehicle_id,omitempty"`
	ServiceType             ServiceType       `json:"service_type"`
	Status                  Status            `json:"status"`
	Priority                Priority          `json:"priority"`
	SubmittedAt             *time.Time        `json:"submitted_at,omitempty"`
	ReviewedAt              *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy              *domain.UserID    `json:"reviewed_by,omitempty"`
	CompletedAt             *time.Time        `json:"completed_at,omitempty"`
	EstimatedCompletionDate *time.Time        `json:"estimated_completion_date,omitempty"`
	VehicleData             map[string]any    `json:"vehicle_data,omitempty"`
	RequirementsData        map[string]any    `json:"requirements_data,omitempty"`
	ReviewerNotes           string            `json:"reviewer_notes,omitempty"`
	RejectionReason         string            `json:"rejection_reason,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
	DeletedAt               *time.Time        `json:"-"`

	Vehicle   *Vehicle   `json:"vehicle,omitempty"`
	Documents []Document `json:"documents,omitempty"`
	Payments  []Payment  `json:"payments,omitempty"`
}

// NewCase builds a draft case for owner.
func NewCase(tenantID domain.TenantID, ownerID domain.UserID, serviceType ServiceType, priority Priority, vehicleID *domain.VehicleID, vehicleData, requirementsData map[string]any, now time.Time) (*Case, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case requires a tenant")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case requires an owner")
	}
	if serviceType == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case requires a service type")
	}
	if priority == "" {
		priority = PriorityNormal
	}
	return &Case{
		TenantID:         tenantID,
		OwnerID:          ownerID,
		VehicleID:        vehicleID,
		ServiceType:      serviceType,
		Status:           StatusDraft,
		Priority:         priority,
		VehicleData:      vehicleData,
		RequirementsData: requirementsData,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (c *Case) IsDeleted() bool {
	return c.DeletedAt != nil
}

// IsEditable reports whether the owner may change snapshot payloads.
func (c *Case) IsEditable() bool {
	return c.Status == StatusDraft || c.Status == StatusInfoRequested
}

// AcceptedDocumentTypes returns the set of document types with at least one
// accepted document.
func (c *Case) AcceptedDocumentTypes() map[DocumentType]bool {
	out := make(map[DocumentType]bool)
	for _, d := range c.Documents {
		if d.Status == DocumentAccepted {
			out[d.Type] = true
		}
	}
	return out
}

// MissingDocuments returns the required types that have no accepted document,
// in the order given.
func (c *Case) MissingDocuments(required []DocumentType) []DocumentType {
	accepted := c.AcceptedDocumentTypes()
	var missing []DocumentType
	for _, t := range required {
		if !accepted[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

func (c *Case) HasCompletedPayment() bool {
	for _, p := range c.Payments {
		if p.Status == PaymentCompleted {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of a store.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	out.VehicleID = clonePtr(c.VehicleID)
	out.SubmittedAt = clonePtr(c.SubmittedAt)
	out.ReviewedAt = clonePtr(c.ReviewedAt)
	out.ReviewedBy = clonePtr(c.ReviewedBy)
	out.CompletedAt = clonePtr(c.CompletedAt)
	out.EstimatedCompletionDate = clonePtr(c.EstimatedCompletionDate)
	out.DeletedAt = clonePtr(c.DeletedAt)
	out.VehicleData = maps.Clone(c.VehicleData)
	out.RequirementsData = maps.Clone(c.RequirementsData)
	if c.Vehicle != nil {
		v := *c.Vehicle
		out.Vehicle = &v
	}
	out.Documents = append([]Document(nil), c.Documents...)
	out.Payments = append([]Payment(nil), c.Payments...)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CandidateQuery selects cases for automation. Results are ordered by
// submitted_at ascending, then id ascending.
type CandidateQuery struct {
	ServiceType ServiceType
	Status      Status
	Limit       int
}
