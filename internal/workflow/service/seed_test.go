package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/workflow/predicates"
	"caseflow/internal/workflow/store"
	"caseflow/pkg/domain"
)

func TestSeedDefaultRule(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	rules := store.NewInMemory()

	created, err := SeedDefaultRule(ctx, rules, domain.TenantID(4), now)
	require.NoError(t, err)
	assert.True(t, created)

	rule, err := rules.FindByKey(ctx, domain.TenantID(4), predicates.SimpleRenewalsKey)
	require.NoError(t, err)
	assert.True(t, rule.IsActive)
	assert.JSONEq(t, string(DefaultRuleConfig), string(rule.Config))

	_, err = predicates.SimpleRenewals{}.Compile(rule.Config)
	require.NoError(t, err, "seeded config must compile")

	t.Run("existing rule is preserved", func(t *testing.T) {
		rule.IsActive = false
		rule.Config = json.RawMessage(`{"max_batch":5}`)
		require.NoError(t, rules.Upsert(ctx, rule))

		created, err := SeedDefaultRule(ctx, rules, domain.TenantID(4), now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, created)

		got, err := rules.FindByKey(ctx, domain.TenantID(4), predicates.SimpleRenewalsKey)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.JSONEq(t, `{"max_batch":5}`, string(got.Config))
	})
}
