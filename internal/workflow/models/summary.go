package models

import "caseflow/pkg/domain"

// NoExecutorNote is reported for active rules whose key has no predicate.
const NoExecutorNote = "Rule is active but has no executor configured yet."

// RunSummary aggregates one automation run across rules.
type RunSummary struct {
	RunID        string       `json:"run_id"`
	DryRun       bool         `json:"dry_run"`
	RuleCount    int          `json:"rule_count"`
	MatchedCount int          `json:"matched_count"`
	UpdatedCount int          `json:"updated_count"`
	Results      []RuleResult `json:"results"`
}

// RuleResult is one rule's outcome. Error is set when the predicate failed;
// the run itself still succeeds.
type RuleResult struct {
	RuleID         domain.RuleID   `json:"rule_id"`
	RuleKey        string          `json:"rule_key"`
	RuleName       string          `json:"rule_name"`
	MatchedCount   int             `json:"matched_count"`
	UpdatedCount   int             `json:"updated_count"`
	MatchedCaseIDs []domain.CaseID `json:"matched_case_ids"`
	Notes          []string        `json:"notes,omitempty"`
	Parameters     map[string]any  `json:"parameters,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// DashboardSummary is the trimmed dry-run view: counts only, no case ids.
type DashboardSummary struct {
	DryRun       bool                 `json:"dry_run"`
	RuleCount    int                  `json:"rule_count"`
	MatchedCount int                  `json:"matched_count"`
	UpdatedCount int                  `json:"updated_count"`
	Results      []DashboardRuleCount `json:"results"`
}

type DashboardRuleCount struct {
	RuleKey      string `json:"rule_key"`
	RuleName     string `json:"rule_name"`
	MatchedCount int    `json:"matched_count"`
	UpdatedCount int    `json:"updated_count"`
}

// Trim reduces a summary to its dashboard form.
func (s *RunSummary) Trim() *DashboardSummary {
	out := &DashboardSummary{
		DryRun:       s.DryRun,
		RuleCount:    s.RuleCount,
		MatchedCount: s.MatchedCount,
		UpdatedCount: s.UpdatedCount,
		Results:      make([]DashboardRuleCount, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		out.Results = append(out.Results, DashboardRuleCount{
			RuleKey:      r.RuleKey,
			RuleName:     r.RuleName,
			MatchedCount: r.MatchedCount,
			UpdatedCount: r.UpdatedCount,
		})
	}
	return out
}
