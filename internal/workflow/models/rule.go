package models

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// MaxRuleKeyLength bounds rule keys accepted from callers.
const MaxRuleKeyLength = 120

// Rule is a tenant-scoped automation policy. Config is opaque here; only the
// predicate registered under Key interprets it.
//
// Invariants:
//   - (TenantID, Key) is unique
//   - RunCount and LastRunAt only change after a committed apply-mode run
type Rule struct {
	ID          domain.RuleID   `json:"id"`
	TenantID    domain.TenantID `json:"tenant_id"`
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsActive    bool            `json:"is_active"`
	Config      json.RawMessage `json:"config,omitempty"`
	LastRunAt   *time.Time      `json:"last_run_at,omitempty"`
	RunCount    int             `json:"run_count"`
	CreatedBy   *domain.UserID  `json:"created_by,omitempty"`
	UpdatedBy   *domain.UserID  `json:"updated_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewRule validates a rule definition for provisioning.
func NewRule(tenantID domain.TenantID, key, name string, config json.RawMessage, active bool, createdBy *domain.UserID, now time.Time) (*Rule, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule requires a tenant")
	}
	key = strings.TrimSpace(key)
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule requires a name")
	}
	if len(config) > 0 && !json.Valid(config) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule config must be valid JSON")
	}
	return &Rule{
		TenantID:  tenantID,
		Key:       key,
		Name:      strings.TrimSpace(name),
		IsActive:  active,
		Config:    config,
		CreatedBy: createdBy,
		UpdatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateKey rejects empty and oversized keys.
func ValidateKey(key string) error {
	if key == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "rule key is required")
	}
	if utf8.RuneCountInString(key) > MaxRuleKeyLength {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "rule key exceeds %d characters", MaxRuleKeyLength)
	}
	return nil
}

// Clone returns a deep copy.
func (r *Rule) Clone() *Rule {
	out := *r
	out.Config = append(json.RawMessage(nil), r.Config...)
	if r.LastRunAt != nil {
		t := *r.LastRunAt
		out.LastRunAt = &t
	}
	if r.CreatedBy != nil {
		u := *r.CreatedBy
		out.CreatedBy = &u
	}
	if r.UpdatedBy != nil {
		u := *r.UpdatedBy
		out.UpdatedBy = &u
	}
	return &out
}
