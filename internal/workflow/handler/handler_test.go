package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/workflow/models"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/testutil"
)

var staff = domain.Actor{ID: 20, TenantID: 1, Role: domain.RoleStaff}

type fakeEngine struct {
	dryRun   bool
	ruleKeys []string
	calls    int
	err      error
}

func (f *fakeEngine) Run(_ context.Context, actor domain.Actor, dryRun bool, ruleKeys []string) (*models.RunSummary, error) {
	f.calls++
	f.dryRun = dryRun
	f.ruleKeys = ruleKeys
	if f.err != nil {
		return nil, f.err
	}
	return &models.RunSummary{RunID: "run-1", DryRun: dryRun, RuleCount: 1, MatchedCount: 2, Results: []models.RuleResult{{
		RuleID:         4,
		RuleKey:        "auto_approve_simple_renewals",
		RuleName:       "Simple renewals",
		MatchedCount:   2,
		MatchedCaseIDs: []domain.CaseID{7, 9},
	}}}, nil
}

func (f *fakeEngine) DryRunSummary(ctx context.Context, actor domain.Actor) (*models.DashboardSummary, error) {
	summary, err := f.Run(ctx, actor, true, nil)
	if err != nil {
		return nil, err
	}
	return summary.Trim(), nil
}

func newRouter(engine Engine) http.Handler {
	h := New(engine, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	r := chi.NewRouter()
	h.RegisterAdmin(r)
	return r
}

func TestHandleRun(t *testing.T) {
	t.Run("defaults to dry run", func(t *testing.T) {
		engine := &fakeEngine{}
		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/admin/automation/run", map[string]any{}), staff)
		rr := testutil.DoRequest(newRouter(engine), req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, engine.dryRun)
		summary := testutil.UnmarshalResponse[models.RunSummary](t, rr)
		assert.True(t, summary.DryRun)
		assert.Equal(t, 2, summary.MatchedCount)
	})

	t.Run("apply with rule keys", func(t *testing.T) {
		engine := &fakeEngine{}
		body := map[string]any{"dry_run": false, "rule_keys": []string{"auto_approve_simple_renewals"}}
		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/admin/automation/run", body), staff)
		rr := testutil.DoRequest(newRouter(engine), req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, engine.dryRun)
		assert.Equal(t, []string{"auto_approve_simple_renewals"}, engine.ruleKeys)
		summary := testutil.UnmarshalResponse[models.RunSummary](t, rr)
		assert.Equal(t, []domain.CaseID{7, 9}, summary.Results[0].MatchedCaseIDs)
	})

	t.Run("oversized rule key is rejected before running", func(t *testing.T) {
		engine := &fakeEngine{}
		body := map[string]any{"rule_keys": []string{strings.Repeat("k", models.MaxRuleKeyLength+1)}}
		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/admin/automation/run", body), staff)
		rr := testutil.DoRequest(newRouter(engine), req)

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		assert.Zero(t, engine.calls)
	})

	t.Run("unknown field is a bad request", func(t *testing.T) {
		req := testutil.WithActor(testutil.NewRequestWithBody(t, http.MethodPost, "/admin/automation/run", `{"mode":"apply"}`), staff)
		rr := testutil.DoRequest(newRouter(&fakeEngine{}), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("missing actor", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/automation/run", nil)
		rr := testutil.DoRequest(newRouter(&fakeEngine{}), req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("concurrent run conflicts", func(t *testing.T) {
		engine := &fakeEngine{err: dErrors.New(dErrors.CodeConflict, "an automation run is already in progress for this tenant")}
		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/admin/automation/run", map[string]any{"dry_run": false}), staff)
		rr := testutil.DoRequest(newRouter(engine), req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})

	t.Run("transaction failure hides details", func(t *testing.T) {
		engine := &fakeEngine{err: dErrors.New(dErrors.CodeTransactionFailure, "rule x: batch approval rolled back")}
		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/admin/automation/run", map[string]any{"dry_run": false}), staff)
		rr := testutil.DoRequest(newRouter(engine), req)
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		body := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, "transaction_failure", body["error"])
		assert.Empty(t, body["error_description"])
	})
}

func TestHandlePreview(t *testing.T) {
	req := testutil.WithActor(testutil.NewRequest(t, http.MethodGet, "/admin/automation/preview"), staff)
	rr := testutil.DoRequest(newRouter(&fakeEngine{}), req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "matched_case_ids")
	summary := testutil.UnmarshalResponse[models.DashboardSummary](t, rr)
	assert.True(t, summary.DryRun)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 2, summary.Results[0].MatchedCount)
}
