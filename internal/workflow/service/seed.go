package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"caseflow/internal/workflow/models"
	"caseflow/internal/workflow/predicates"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
)

// RuleProvisioner is the administrative side of the rule store.
type RuleProvisioner interface {
	FindByKey(ctx context.Context, tenantID domain.TenantID, key string) (*models.Rule, error)
	Upsert(ctx context.Context, rule *models.Rule) error
}

// DefaultRuleConfig is the configuration seeded for the simple renewals rule.
var DefaultRuleConfig = json.RawMessage(`{"required_documents":["insurance","title","tribal_id"],"require_completed_payment":true,"max_vehicle_age_years":20,"max_batch":100}`)

// SeedDefaultRule provisions the simple renewals rule for a tenant. An
// existing rule is left untouched so operator edits survive restarts. It
// reports whether a rule was created.
func SeedDefaultRule(ctx context.Context, store RuleProvisioner, tenantID domain.TenantID, now time.Time) (bool, error) {
	_, err := store.FindByKey(ctx, tenantID, predicates.SimpleRenewalsKey)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up default rule")
	}

	rule, err := models.NewRule(tenantID, predicates.SimpleRenewalsKey, "Auto-approve simple renewals", DefaultRuleConfig, true, nil, now)
	if err != nil {
		return false, err
	}
	rule.Description = "Approves submitted renewals with accepted documents, a completed payment, and an eligible vehicle."
	if err := store.Upsert(ctx, rule); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed default rule")
	}
	return true, nil
}
