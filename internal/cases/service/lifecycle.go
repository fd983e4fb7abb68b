package service

import (
	"context"
	"strings"
	"time"

	"caseflow/internal/cases/models"
	"caseflow/internal/timeline"
	tlmodels "caseflow/internal/timeline/models"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/requestcontext"
)

// AutoApprovalNotes is stored as reviewer notes on automation approvals.
const AutoApprovalNotes = "Approved by workflow automation rule."

// change describes one status write and the entry that must accompany it.
// describe, when set, picks the event and description from the source status.
type change struct {
	to          models.Status
	event       tlmodels.EventType
	description string
	metadata    map[string]any
	describe    func(from models.Status) (tlmodels.EventType, string)
	precheck    func(c *models.Case) error
	mutate      func(c *models.Case, now time.Time)
}

// apply validates and performs a transition on an already locked case. The
// caller owns the unit of work.
func (s *Service) apply(ctx context.Context, c *models.Case, actor domain.Actor, ch change) error {
	if err := models.ValidateTransition(c.Status, ch.to); err != nil {
		return err
	}
	if ch.precheck != nil {
		if err := ch.precheck(c); err != nil {
			return err
		}
	}
	from := c.Status
	event, description := ch.event, ch.description
	if ch.describe != nil {
		event, description = ch.describe(from)
	}
	now := requestcontext.Now(ctx)
	c.Status = ch.to
	c.UpdatedAt = now
	if ch.mutate != nil {
		ch.mutate(c, now)
	}
	if err := s.cases.Update(ctx, c); err != nil {
		return translateStoreErr(err, "failed to update case status")
	}

	metadata := map[string]any{"from": string(from), "to": string(ch.to)}
	for k, v := range ch.metadata {
		metadata[k] = v
	}
	_, err := s.timeline.Append(ctx, timeline.Record{
		TenantID:    c.TenantID,
		CaseID:      c.ID,
		EventType:   event,
		Description: description,
		PerformedBy: &actor.ID,
		Metadata:    metadata,
	})
	return err
}

// transition runs load, authorization, and apply in one unit of work.
func (s *Service) transition(ctx context.Context, actor domain.Actor, id domain.CaseID, ch change) (*models.Case, error) {
	start := time.Now()
	var (
		result *models.Case
		from   models.Status
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.loadForUpdate(txCtx, actor, id)
		if err != nil {
			return err
		}
		if err := models.AuthorizeTransition(c, actor, ch.to); err != nil {
			return err
		}
		from = c.Status
		if err := s.apply(txCtx, c, actor, ch); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
			s.metrics.IncrementRejectedTransition(string(ch.to))
		}
		return nil, err
	}
	s.logAudit(ctx, string(ch.event), result, actor, "from", from, "to", ch.to)
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(from), string(ch.to))
		s.metrics.ObserveTransition(start)
	}
	return result, nil
}

// Submit moves a draft to submitted, or resubmits a case that was sent back
// for more information. All required document types must have an accepted
// document. A non-nil requirementsData replaces the stored snapshot.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, id domain.CaseID, requirementsData map[string]any) (*models.Case, error) {
	return s.transition(ctx, actor, id, change{
		to: models.StatusSubmitted,
		precheck: func(c *models.Case) error {
			if missing := c.MissingDocuments(models.RequiredSubmitDocuments); len(missing) > 0 {
				names := make([]string, len(missing))
				for i, m := range missing {
					names[i] = string(m)
				}
				return dErrors.New(dErrors.CodePreconditionFailed, "missing accepted documents: "+strings.Join(names, ", "))
			}
			return nil
		},
		describe: func(from models.Status) (tlmodels.EventType, string) {
			if from == models.StatusInfoRequested {
				return tlmodels.EventApplicationResubmitted, "Application resubmitted with requested information"
			}
			return tlmodels.EventApplicationSubmitted, "Application submitted for review"
		},
		mutate: func(c *models.Case, now time.Time) {
			c.SubmittedAt = &now
			eta := models.AddWeekdays(now, models.ProcessingWeekdays)
			c.EstimatedCompletionDate = &eta
			if requirementsData != nil {
				c.RequirementsData = requirementsData
			}
		},
	})
}

// Cancel withdraws a draft or submitted case on the owner's request.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id domain.CaseID) (*models.Case, error) {
	return s.transition(ctx, actor, id, change{
		to:          models.StatusCancelled,
		event:       tlmodels.EventApplicationCancelled,
		description: "Application cancelled by applicant",
	})
}

// ReviewRequest is a staff decision.
type ReviewRequest struct {
	Status          models.Status
	Notes           string
	RejectionReason string
}

// Review records a staff decision: under_review, approved, rejected, or completed.
func (s *Service) Review(ctx context.Context, actor domain.Actor, id domain.CaseID, req ReviewRequest) (*models.Case, error) {
	switch req.Status {
	case models.StatusUnderReview, models.StatusApproved, models.StatusRejected, models.StatusCompleted:
	case models.StatusInfoRequested:
		return nil, dErrors.New(dErrors.CodeValidation, "use request-info to ask the applicant for more information")
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "status %q is not a review decision", req.Status)
	}
	reason := strings.TrimSpace(req.RejectionReason)
	if req.Status == models.StatusRejected && reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	notes := strings.TrimSpace(req.Notes)

	return s.transition(ctx, actor, id, change{
		to:          req.Status,
		event:       tlmodels.EventStatusChanged,
		description: "Status changed to " + string(req.Status),
		mutate: func(c *models.Case, now time.Time) {
			c.ReviewedAt = &now
			c.ReviewedBy = &actor.ID
			if notes != "" {
				c.ReviewerNotes = notes
			}
			if req.Status == models.StatusRejected {
				c.RejectionReason = reason
			}
			if req.Status == models.StatusCompleted {
				c.CompletedAt = &now
			}
		},
	})
}

// RequestInfo sends a case back to the applicant with a message.
func (s *Service) RequestInfo(ctx context.Context, actor domain.Actor, id domain.CaseID, message string) (*models.Case, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "message is required")
	}
	return s.transition(ctx, actor, id, change{
		to:          models.StatusInfoRequested,
		event:       tlmodels.EventInfoRequested,
		description: "Additional information requested: " + message,
		metadata:    map[string]any{"message": message},
		mutate: func(c *models.Case, now time.Time) {
			c.ReviewedAt = &now
			c.ReviewedBy = &actor.ID
			c.ReviewerNotes = message
		},
	})
}

// AutoApproval identifies the rule driving an automated approval.
type AutoApproval struct {
	RuleID   domain.RuleID
	RuleKey  string
	RuleName string
}

// ApproveByAutomation approves a submitted case on behalf of actor. It must
// run inside the caller's unit of work. It returns false without error when
// the case is no longer submitted, so a case already moved by an earlier rule
// in the same run is skipped rather than failed.
func (s *Service) ApproveByAutomation(ctx context.Context, actor domain.Actor, id domain.CaseID, rule AutoApproval) (bool, error) {
	if err := models.RequireStaff(actor); err != nil {
		return false, err
	}
	c, err := s.cases.FindByIDForUpdate(ctx, actor.TenantID, id)
	if err != nil {
		return false, translateStoreErr(err, "failed to load case")
	}
	if c.Status != models.StatusSubmitted {
		return false, nil
	}
	err = s.apply(ctx, c, actor, change{
		to:          models.StatusApproved,
		event:       tlmodels.EventWorkflowAutoApproved,
		description: "Automatically approved by workflow rule: " + rule.RuleName,
		metadata:    map[string]any{"rule_key": rule.RuleKey, "rule_id": int64(rule.RuleID)},
		mutate: func(c *models.Case, now time.Time) {
			c.ReviewedAt = &now
			c.ReviewedBy = &actor.ID
			c.ReviewerNotes = AutoApprovalNotes
		},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
