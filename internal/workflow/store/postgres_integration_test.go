//go:build integration

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caseflow/internal/workflow/models"
	"caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "workflow_rules"))
}

func (s *PostgresStoreSuite) upsert(tenant domain.TenantID, key string, active bool) *models.Rule {
	rule, err := models.NewRule(tenant, key, "Rule "+key, json.RawMessage(`{"max_batch":10}`), active, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Upsert(context.Background(), rule))
	return rule
}

func (s *PostgresStoreSuite) TestListActiveFiltersAndOrders() {
	ctx := context.Background()
	first := s.upsert(1, "alpha", true)
	s.upsert(1, "beta", false)
	third := s.upsert(1, "gamma", true)
	s.upsert(2, "alpha", true)

	all, err := s.store.ListActive(ctx, 1, nil)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(first.ID, all[0].ID)
	s.Equal(third.ID, all[1].ID)
	s.JSONEq(`{"max_batch":10}`, string(all[0].Config))

	filtered, err := s.store.ListActive(ctx, 1, []string{"gamma", "beta"})
	s.Require().NoError(err)
	s.Require().Len(filtered, 1)
	s.Equal("gamma", filtered[0].Key)
}

func (s *PostgresStoreSuite) TestUpsertPreservesRunStatistics() {
	ctx := context.Background()
	rule := s.upsert(1, "alpha", true)
	s.Require().NoError(s.store.RecordRun(ctx, 1, rule.ID, 20, s.now))

	again := s.upsert(1, "alpha", false)
	s.Equal(rule.ID, again.ID)
	s.Equal(1, again.RunCount)
	s.Require().NotNil(again.LastRunAt)
	s.True(s.now.Equal(*again.LastRunAt))

	got, err := s.store.FindByKey(ctx, 1, "alpha")
	s.Require().NoError(err)
	s.False(got.IsActive)
	s.Equal(domain.UserID(20), *got.UpdatedBy)
}

func (s *PostgresStoreSuite) TestRecordRunIsTenantScoped() {
	ctx := context.Background()
	rule := s.upsert(1, "alpha", true)

	err := s.store.RecordRun(ctx, 2, rule.ID, 20, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByKey(ctx, 2, "alpha")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
