package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caseflow/internal/casenumber"
	cnstore "caseflow/internal/casenumber/store"
	"caseflow/internal/cases/models"
	"caseflow/internal/cases/store"
	"caseflow/internal/timeline"
	tlmodels "caseflow/internal/timeline/models"
	tlstore "caseflow/internal/timeline/store"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/uow"
	"caseflow/pkg/requestcontext"
)

// =============================================================================
// Lifecycle tests against in-memory stores
// =============================================================================
// These exercise the full unit of work: status write, timeline append, and
// rollback, so atomicity is checked on real store state.

type LifecycleSuite struct {
	suite.Suite
	cases    *store.InMemory
	timeline *tlstore.InMemory
	log      *timeline.Log
	service  *Service
	ctx      context.Context
	now      time.Time
	owner    domain.Actor
	staff    domain.Actor
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.cases = store.NewInMemory()
	s.timeline = tlstore.NewInMemory()
	s.log = timeline.NewLog(s.timeline)
	numbers := cnstore.NewInMemory()
	runner := uow.NewMemory(s.cases, s.timeline, numbers)
	var err error
	s.service, err = New(s.cases, s.log, casenumber.New(numbers), runner)
	s.Require().NoError(err)

	// Thursday, so the three-weekday estimate crosses a weekend.
	s.now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.owner = domain.Actor{ID: 10, TenantID: 1, Role: domain.RoleMember}
	s.staff = domain.Actor{ID: 20, TenantID: 1, Role: domain.RoleStaff}
}

func (s *LifecycleSuite) newDraft() *models.Case {
	c, err := s.service.Create(s.ctx, s.owner, CreateRequest{ServiceType: models.ServiceRenewal})
	s.Require().NoError(err)
	return c
}

func (s *LifecycleSuite) acceptDocuments(id domain.CaseID, types ...models.DocumentType) {
	for _, t := range types {
		s.Require().NoError(s.cases.AddDocument(s.ctx, &models.Document{CaseID: id, Type: t, Status: models.DocumentAccepted, UploadedAt: s.now}))
	}
}

// forceStatus puts a case into a state without going through the lifecycle.
func (s *LifecycleSuite) forceStatus(id domain.CaseID, status models.Status) {
	c, err := s.cases.FindByID(s.ctx, 1, id)
	s.Require().NoError(err)
	c.Status = status
	s.Require().NoError(s.cases.Update(s.ctx, c))
}

func (s *LifecycleSuite) timelineCount(id domain.CaseID) int {
	n, err := s.log.Count(s.ctx, 1, id)
	s.Require().NoError(err)
	return n
}

// drive attempts a move to the target using whichever operation owns that target.
func (s *LifecycleSuite) drive(id domain.CaseID, to models.Status) error {
	var err error
	switch to {
	case models.StatusSubmitted:
		_, err = s.service.Submit(s.ctx, s.owner, id, nil)
	case models.StatusCancelled:
		_, err = s.service.Cancel(s.ctx, s.owner, id)
	case models.StatusInfoRequested:
		_, err = s.service.RequestInfo(s.ctx, s.staff, id, "please upload a clearer title")
	case models.StatusDraft:
		// No operation targets draft; any attempt is an illegal edge.
		c, ferr := s.cases.FindByID(s.ctx, 1, id)
		s.Require().NoError(ferr)
		err = s.service.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
			return s.service.apply(txCtx, c, s.staff, change{to: to, event: tlmodels.EventStatusChanged, description: "x"})
		})
	default:
		_, err = s.service.Review(s.ctx, s.staff, id, ReviewRequest{Status: to, RejectionReason: "does not qualify"})
	}
	return err
}

func (s *LifecycleSuite) TestEveryPairIsAtomic() {
	for _, from := range models.AllStatuses() {
		for _, to := range models.AllStatuses() {
			s.Run(fmt.Sprintf("%s to %s", from, to), func() {
				c := s.newDraft()
				s.acceptDocuments(c.ID, models.RequiredSubmitDocuments...)
				s.forceStatus(c.ID, from)
				before := s.timelineCount(c.ID)

				err := s.drive(c.ID, to)

				after, ferr := s.cases.FindByID(s.ctx, 1, c.ID)
				s.Require().NoError(ferr)
				if models.CanTransition(from, to) {
					s.Require().NoError(err)
					s.Equal(to, after.Status)
					s.Equal(before+1, s.timelineCount(c.ID))
					return
				}
				s.Require().Error(err)
				s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "got %v", err)
				s.Equal(from, after.Status)
				s.Equal(before, s.timelineCount(c.ID))
			})
		}
	}
}

func (s *LifecycleSuite) TestSubmit() {
	s.Run("missing accepted documents fails precondition", func() {
		c := s.newDraft()
		s.acceptDocuments(c.ID, models.DocumentInsurance, models.DocumentTitle)
		s.Require().NoError(s.cases.AddDocument(s.ctx, &models.Document{CaseID: c.ID, Type: models.DocumentTribalID, Status: models.DocumentUploaded}))

		_, err := s.service.Submit(s.ctx, s.owner, c.ID, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
		s.Contains(dErrors.MessageOf(err), "tribal_id")

		after, _ := s.cases.FindByID(s.ctx, 1, c.ID)
		s.Equal(models.StatusDraft, after.Status)
		s.Equal(1, s.timelineCount(c.ID))
	})

	s.Run("complete draft is submitted with estimate", func() {
		c := s.newDraft()
		s.acceptDocuments(c.ID, models.RequiredSubmitDocuments...)

		got, err := s.service.Submit(s.ctx, s.owner, c.ID, map[string]any{"plate": "ABC123"})
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, got.Status)
		s.Equal(s.now, *got.SubmittedAt)
		s.Equal(time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), *got.EstimatedCompletionDate)
		s.Equal("ABC123", got.RequirementsData["plate"])

		entries, err := s.log.List(s.ctx, 1, c.ID)
		s.Require().NoError(err)
		s.Equal(tlmodels.EventApplicationSubmitted, entries[0].EventType)
	})

	s.Run("resubmission is tagged separately", func() {
		c := s.newDraft()
		s.acceptDocuments(c.ID, models.RequiredSubmitDocuments...)
		_, err := s.service.Submit(s.ctx, s.owner, c.ID, nil)
		s.Require().NoError(err)
		_, err = s.service.RequestInfo(s.ctx, s.staff, c.ID, "photo of VIN plate")
		s.Require().NoError(err)

		_, err = s.service.Submit(s.ctx, s.owner, c.ID, nil)
		s.Require().NoError(err)

		entries, err := s.log.List(s.ctx, 1, c.ID)
		s.Require().NoError(err)
		s.Equal(tlmodels.EventApplicationResubmitted, entries[0].EventType)
	})

	s.Run("only the owner may submit", func() {
		c := s.newDraft()
		s.acceptDocuments(c.ID, models.RequiredSubmitDocuments...)
		other := domain.Actor{ID: 11, TenantID: 1, Role: domain.RoleMember}

		_, err := s.service.Submit(s.ctx, other, c.ID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		_, err = s.service.Submit(s.ctx, s.staff, c.ID, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *LifecycleSuite) TestReview() {
	c := s.newDraft()
	s.acceptDocuments(c.ID, models.RequiredSubmitDocuments...)
	_, err := s.service.Submit(s.ctx, s.owner, c.ID, nil)
	s.Require().NoError(err)

	s.Run("rejection requires a reason", func() {
		_, err := s.service.Review(s.ctx, s.staff, c.ID, ReviewRequest{Status: models.StatusRejected})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("members cannot review", func() {
		_, err := s.service.Review(s.ctx, s.owner, c.ID, ReviewRequest{Status: models.StatusApproved})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("approve then complete stamps reviewer and completion", func() {
		got, err := s.service.Review(s.ctx, s.staff, c.ID, ReviewRequest{Status: models.StatusApproved, Notes: "looks good"})
		s.Require().NoError(err)
		s.Equal(s.staff.ID, *got.ReviewedBy)
		s.Equal("looks good", got.ReviewerNotes)

		got, err = s.service.Review(s.ctx, s.staff, c.ID, ReviewRequest{Status: models.StatusCompleted})
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, got.Status)
		s.NotNil(got.CompletedAt)
	})

	s.Run("staff of another tenant sees nothing", func() {
		foreign := domain.Actor{ID: 20, TenantID: 2, Role: domain.RoleStaff}
		_, err := s.service.Get(s.ctx, foreign, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LifecycleSuite) TestDeleteOnlyFromDraft() {
	c := s.newDraft()
	s.Require().NoError(s.service.Delete(s.ctx, s.owner, c.ID))
	_, err := s.service.Get(s.ctx, s.owner, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	submitted := s.newDraft()
	s.forceStatus(submitted.ID, models.StatusSubmitted)
	err = s.service.Delete(s.ctx, s.owner, submitted.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *LifecycleSuite) TestUpdateDraft() {
	c := s.newDraft()
	got, err := s.service.UpdateDraft(s.ctx, s.owner, c.ID, UpdateRequest{VehicleData: map[string]any{"vin": "1HGCM"}})
	s.Require().NoError(err)
	s.Equal("1HGCM", got.VehicleData["vin"])
	s.Equal(1, s.timelineCount(c.ID))

	s.forceStatus(c.ID, models.StatusApproved)
	_, err = s.service.UpdateDraft(s.ctx, s.owner, c.ID, UpdateRequest{VehicleData: map[string]any{"vin": "X"}})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *LifecycleSuite) TestCaseNumbersIncrease() {
	first := s.newDraft()
	second := s.newDraft()
	s.Equal("APP-2026-001", first.CaseNumber)
	s.Equal("APP-2026-002", second.CaseNumber)
}

func (s *LifecycleSuite) TestAutomationApprovalRollsBackWithCallerUnitOfWork() {
	c := s.newDraft()
	s.forceStatus(c.ID, models.StatusSubmitted)
	before := s.timelineCount(c.ID)

	boom := errors.New("later write failed")
	err := s.service.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		ok, err := s.service.ApproveByAutomation(txCtx, s.staff, c.ID, AutoApproval{RuleID: 1, RuleKey: "auto_approve_simple_renewals", RuleName: "Auto-approve"})
		s.Require().NoError(err)
		s.True(ok)
		return boom
	})
	s.ErrorIs(err, boom)

	after, _ := s.cases.FindByID(s.ctx, 1, c.ID)
	s.Equal(models.StatusSubmitted, after.Status)
	s.Equal(before, s.timelineCount(c.ID))
}

func (s *LifecycleSuite) TestAutomationApprovalStampsCase() {
	c := s.newDraft()
	s.forceStatus(c.ID, models.StatusSubmitted)

	err := s.service.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		_, err := s.service.ApproveByAutomation(txCtx, s.staff, c.ID, AutoApproval{RuleID: 3, RuleKey: "auto_approve_simple_renewals", RuleName: "Simple renewals"})
		return err
	})
	s.Require().NoError(err)

	after, _ := s.cases.FindByID(s.ctx, 1, c.ID)
	s.Equal(models.StatusApproved, after.Status)
	s.Equal(AutoApprovalNotes, after.ReviewerNotes)

	entries, _ := s.log.List(s.ctx, 1, c.ID)
	s.Equal(tlmodels.EventWorkflowAutoApproved, entries[0].EventType)
	s.Equal("Automatically approved by workflow rule: Simple renewals", entries[0].Description)
	s.Equal("auto_approve_simple_renewals", entries[0].Metadata["rule_key"])
	s.Equal(int64(3), entries[0].Metadata["rule_id"])
}
