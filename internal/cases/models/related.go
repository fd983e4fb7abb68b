package models

import (
	"time"

	"caseflow/pkg/domain"
)

type DocumentType string

const (
	DocumentInsurance        DocumentType = "insurance"
	DocumentTitle            DocumentType = "title"
	DocumentTribalID         DocumentType = "tribal_id"
	DocumentDriversLicense   DocumentType = "drivers_license"
	DocumentInspection       DocumentType = "inspection"
	DocumentProofOfResidency DocumentType = "proof_of_residency"
	DocumentOther            DocumentType = "other"
)

// RequiredSubmitDocuments must each have an accepted document before submit.
var RequiredSubmitDocuments = []DocumentType{DocumentInsurance, DocumentTitle, DocumentTribalID}

type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "uploaded"
	DocumentProcessing DocumentStatus = "processing"
	DocumentAccepted   DocumentStatus = "accepted"
	DocumentRejected   DocumentStatus = "rejected"
	DocumentExpired    DocumentStatus = "expired"
)

// Document is an uploaded file's review record. Several documents of one type
// may exist; only accepted ones count.
type Document struct {
	ID         domain.DocumentID `json:"id"`
	CaseID     domain.CaseID     `json:"case_id"`
	Type       DocumentType      `json:"document_type"`
	Status     DocumentStatus    `json:"status"`
	UploadedAt time.Time         `json:"uploaded_at"`
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentDisputed   PaymentStatus = "disputed"
)

type Payment struct {
	ID          domain.PaymentID `json:"id"`
	CaseID      domain.CaseID    `json:"case_id"`
	Status      PaymentStatus    `json:"status"`
	AmountCents int64            `json:"amount_cents"`
}

type RegistrationStatus string

const (
	RegistrationActive    RegistrationStatus = "active"
	RegistrationExpired   RegistrationStatus = "expired"
	RegistrationSuspended RegistrationStatus = "suspended"
)

type Vehicle struct {
	ID                 domain.VehicleID   `json:"id"`
	TenantID           domain.TenantID    `json:"tenant_id"`
	Year               int                `json:"year"`
	RegistrationStatus RegistrationStatus `json:"registration_status"`
}

// AgeYears is the vehicle's age in whole calendar years, never negative.
func (v Vehicle) AgeYears(now time.Time) int {
	return max(0, now.Year()-v.Year)
}
