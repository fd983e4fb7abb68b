//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caseflow/internal/cases/models"
	"caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/platform/uow"
	"caseflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
	ctx      context.Context
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
	s.ctx = context.Background()
	s.now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "payments", "documents", "cases", "vehicles"))
}

func (s *PostgresStoreSuite) newCase(tenant domain.TenantID, number string) *models.Case {
	c, err := models.NewCase(tenant, 10, models.ServiceRenewal, models.PriorityNormal, nil,
		map[string]any{"plate": "ABC123"}, nil, s.now)
	s.Require().NoError(err)
	c.CaseNumber = number
	s.Require().NoError(s.store.Create(s.ctx, c))
	return c
}

func (s *PostgresStoreSuite) TestCreateAndFindHydratesRelations() {
	vehicle := &models.Vehicle{TenantID: 1, Year: 2020, RegistrationStatus: models.RegistrationActive}
	s.Require().NoError(s.store.SaveVehicle(s.ctx, vehicle))

	c := s.newCase(1, "APP-2026-001")
	c.VehicleID = &vehicle.ID
	s.Require().NoError(s.store.Update(s.ctx, c))
	s.Require().NoError(s.store.AddDocument(s.ctx, &models.Document{CaseID: c.ID, Type: models.DocumentTitle, Status: models.DocumentAccepted, UploadedAt: s.now}))
	s.Require().NoError(s.store.AddPayment(s.ctx, &models.Payment{CaseID: c.ID, Status: models.PaymentCompleted, AmountCents: 4500}))

	got, err := s.store.FindByID(s.ctx, 1, c.ID)
	s.Require().NoError(err)
	s.Equal("APP-2026-001", got.CaseNumber)
	s.Equal("ABC123", got.VehicleData["plate"])
	s.Require().NotNil(got.Vehicle)
	s.Equal(2020, got.Vehicle.Year)
	s.Len(got.Documents, 1)
	s.Len(got.Payments, 1)
}

func (s *PostgresStoreSuite) TestDuplicateCaseNumberConflicts() {
	s.newCase(1, "APP-2026-001")

	dup, err := models.NewCase(1, 11, models.ServiceRenewal, models.PriorityNormal, nil, nil, nil, s.now)
	s.Require().NoError(err)
	dup.CaseNumber = "APP-2026-001"
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)

	other := s.newCase(2, "APP-2026-001")
	s.NotZero(other.ID, "numbers are unique per tenant only")
}

func (s *PostgresStoreSuite) TestTenantScopingAndSoftDelete() {
	c := s.newCase(1, "APP-2026-001")

	_, err := s.store.FindByID(s.ctx, 2, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	deletedAt := s.now
	c.DeletedAt = &deletedAt
	s.Require().NoError(s.store.Update(s.ctx, c))

	_, err = s.store.FindByID(s.ctx, 1, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, c), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListCandidatesOrdersBySubmission() {
	later := s.newCase(1, "APP-2026-001")
	earlier := s.newCase(1, "APP-2026-002")
	draft := s.newCase(1, "APP-2026-003")
	s.newCase(2, "APP-2026-001")

	submit := func(c *models.Case, at time.Time) {
		c.Status = models.StatusSubmitted
		c.SubmittedAt = &at
		s.Require().NoError(s.store.Update(s.ctx, c))
	}
	submit(later, s.now.Add(time.Hour))
	submit(earlier, s.now)

	got, err := s.store.ListCandidates(s.ctx, 1, models.CandidateQuery{Status: models.StatusSubmitted, ServiceType: models.ServiceRenewal, Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(earlier.ID, got[0].ID)
	s.Equal(later.ID, got[1].ID)

	limited, err := s.store.ListCandidates(s.ctx, 1, models.CandidateQuery{Status: models.StatusSubmitted, Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)

	drafts, err := s.store.ListCandidates(s.ctx, 1, models.CandidateQuery{Status: models.StatusDraft})
	s.Require().NoError(err)
	s.Require().Len(drafts, 1)
	s.Equal(draft.ID, drafts[0].ID)
}

func (s *PostgresStoreSuite) TestRolledBackCreateLeavesNoRow() {
	runner := uow.NewPostgres(s.postgres.DB)
	var id domain.CaseID
	err := runner.RunInTx(s.ctx, func(txCtx context.Context) error {
		c, err := models.NewCase(1, 10, models.ServiceRenewal, models.PriorityNormal, nil, nil, nil, s.now)
		s.Require().NoError(err)
		c.CaseNumber = "APP-2026-009"
		s.Require().NoError(s.store.Create(txCtx, c))
		id = c.ID
		return sentinel.ErrUnavailable
	})
	s.ErrorIs(err, sentinel.ErrUnavailable)

	_, err = s.store.FindByID(s.ctx, 1, id)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
