package predicates

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	casemodels "caseflow/internal/cases/models"
)

// SimpleRenewalsKey is the rule key for auto-approving low-risk renewals.
const SimpleRenewalsKey = "auto_approve_simple_renewals"

const (
	defaultMaxVehicleAgeYears = 20
	defaultMaxBatch           = 100
)

// SimpleRenewals matches submitted renewals whose vehicle is not suspended
// and not too old, whose required documents are all accepted, and which have
// a completed payment when one is required.
type SimpleRenewals struct{}

func (SimpleRenewals) Key() string { return SimpleRenewalsKey }

// simpleRenewalsConfig mirrors the rule's JSON config. Pointers distinguish
// absent keys from explicit zero values.
type simpleRenewalsConfig struct {
	RequiredDocuments       []casemodels.DocumentType `json:"required_documents"`
	RequireCompletedPayment *bool                     `json:"require_completed_payment"`
	MaxVehicleAgeYears      *int                      `json:"max_vehicle_age_years"`
	MaxBatch                *int                      `json:"max_batch"`
}

func (SimpleRenewals) Compile(raw json.RawMessage) (Evaluator, error) {
	var cfg simpleRenewalsConfig
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s config: %w", SimpleRenewalsKey, err)
		}
	}

	e := &simpleRenewalsEvaluator{
		requiredDocuments:       slices.Clone(casemodels.RequiredSubmitDocuments),
		requireCompletedPayment: true,
		maxVehicleAgeYears:      defaultMaxVehicleAgeYears,
		maxBatch:                defaultMaxBatch,
	}
	if cfg.RequiredDocuments != nil {
		e.requiredDocuments = dedupe(cfg.RequiredDocuments)
	}
	if cfg.RequireCompletedPayment != nil {
		e.requireCompletedPayment = *cfg.RequireCompletedPayment
	}
	if cfg.MaxVehicleAgeYears != nil {
		e.maxVehicleAgeYears = *cfg.MaxVehicleAgeYears
	}
	if cfg.MaxBatch != nil {
		e.maxBatch = max(1, *cfg.MaxBatch)
	}
	return e, nil
}

type simpleRenewalsEvaluator struct {
	requiredDocuments       []casemodels.DocumentType
	requireCompletedPayment bool
	maxVehicleAgeYears      int
	maxBatch                int
}

func (e *simpleRenewalsEvaluator) Query() casemodels.CandidateQuery {
	return casemodels.CandidateQuery{
		ServiceType: casemodels.ServiceRenewal,
		Status:      casemodels.StatusSubmitted,
		Limit:       e.maxBatch,
	}
}

func (e *simpleRenewalsEvaluator) Match(c *casemodels.Case, now time.Time) (bool, error) {
	if c.ServiceType != casemodels.ServiceRenewal || c.Status != casemodels.StatusSubmitted {
		return false, nil
	}
	if c.Vehicle == nil || c.Vehicle.RegistrationStatus == casemodels.RegistrationSuspended {
		return false, nil
	}
	// A non-positive limit disables the age check.
	if e.maxVehicleAgeYears > 0 && c.Vehicle.AgeYears(now) > e.maxVehicleAgeYears {
		return false, nil
	}
	if len(c.MissingDocuments(e.requiredDocuments)) > 0 {
		return false, nil
	}
	if e.requireCompletedPayment && !c.HasCompletedPayment() {
		return false, nil
	}
	return true, nil
}

func (e *simpleRenewalsEvaluator) Parameters() map[string]any {
	docs := make([]string, len(e.requiredDocuments))
	for i, d := range e.requiredDocuments {
		docs[i] = string(d)
	}
	return map[string]any{
		"required_documents":        docs,
		"require_completed_payment": e.requireCompletedPayment,
		"max_vehicle_age_years":     e.maxVehicleAgeYears,
		"max_batch":                 e.maxBatch,
	}
}

func dedupe(in []casemodels.DocumentType) []casemodels.DocumentType {
	seen := make(map[casemodels.DocumentType]bool, len(in))
	out := make([]casemodels.DocumentType, 0, len(in))
	for _, d := range in {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
