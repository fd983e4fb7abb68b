// Package service implements the case lifecycle: creation, owner actions,
// staff review, and the automation approval path. Every status change loads
// the case under lock, validates the edge, writes the new status, and appends
// exactly one timeline entry inside a single unit of work.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CaseStore,Timeline,NumberGenerator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"caseflow/internal/cases/metrics"
	"caseflow/internal/cases/models"
	"caseflow/internal/timeline"
	tlmodels "caseflow/internal/timeline/models"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/middleware/metadata"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/platform/uow"
	"caseflow/pkg/requestcontext"
)

// CaseStore is the tenant-scoped case repository. Writes must join the
// transaction carried by ctx.
type CaseStore interface {
	Create(ctx context.Context, c *models.Case) error
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.CaseID) (*models.Case, error)
	FindByIDForUpdate(ctx context.Context, tenantID domain.TenantID, id domain.CaseID) (*models.Case, error)
	Update(ctx context.Context, c *models.Case) error
	ListCandidates(ctx context.Context, tenantID domain.TenantID, q models.CandidateQuery) ([]*models.Case, error)
}

type Timeline interface {
	Append(ctx context.Context, rec timeline.Record) (*tlmodels.Entry, error)
	List(ctx context.Context, tenantID domain.TenantID, caseID domain.CaseID) ([]*tlmodels.Entry, error)
}

type NumberGenerator interface {
	Next(ctx context.Context, tenantID domain.TenantID, now time.Time) (string, error)
}

// Service orchestrates case state changes.
type Service struct {
	cases    CaseStore
	timeline Timeline
	numbers  NumberGenerator
	tx       uow.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(cases CaseStore, tl Timeline, numbers NumberGenerator, tx uow.Runner, opts ...Option) (*Service, error) {
	if cases == nil {
		return nil, errors.New("case store is required")
	}
	if tl == nil {
		return nil, errors.New("timeline is required")
	}
	if numbers == nil {
		return nil, errors.New("number generator is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{cases: cases, timeline: tl, numbers: numbers, tx: tx}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateRequest carries the owner's input for a new draft.
type CreateRequest struct {
	ServiceType      models.ServiceType
	Priority         models.Priority
	VehicleID        *domain.VehicleID
	VehicleData      map[string]any
	RequirementsData map[string]any
}

// Create opens a draft case, assigns its case number, and records
// application_started, all in one unit of work.
func (s *Service) Create(ctx context.Context, actor domain.Actor, req CreateRequest) (*models.Case, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	c, err := models.NewCase(actor.TenantID, actor.ID, req.ServiceType, req.Priority, req.VehicleID, req.VehicleData, req.RequirementsData, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		number, err := s.numbers.Next(txCtx, actor.TenantID, now)
		if err != nil {
			return err
		}
		c.CaseNumber = number
		if err := s.cases.Create(txCtx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "case number already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create case")
		}
		_, err = s.timeline.Append(txCtx, timeline.Record{
			TenantID:    c.TenantID,
			CaseID:      c.ID,
			EventType:   tlmodels.EventApplicationStarted,
			Description: "Application created",
			PerformedBy: &actor.ID,
			Metadata:    map[string]any{"case_number": c.CaseNumber, "service_type": string(c.ServiceType)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(tlmodels.EventApplicationStarted), c, actor, "case_number", c.CaseNumber)
	if s.metrics != nil {
		s.metrics.IncrementCreated(string(c.ServiceType))
	}
	return c, nil
}

// Get returns a case visible to actor. Cases of other tenants and cases a
// member does not own are reported as not found.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.CaseID) (*models.Case, error) {
	c, err := s.cases.FindByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load case")
	}
	if !models.CanView(c, actor) {
		return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return c, nil
}

// UpdateRequest replaces the snapshot payloads that are non-nil.
type UpdateRequest struct {
	VehicleID        *domain.VehicleID
	VehicleData      map[string]any
	RequirementsData map[string]any
}

// UpdateDraft lets the owner edit a case while it is in draft or info_requested.
// It does not change status and writes no timeline entry.
func (s *Service) UpdateDraft(ctx context.Context, actor domain.Actor, id domain.CaseID, req UpdateRequest) (*models.Case, error) {
	var updated *models.Case
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.loadForUpdate(txCtx, actor, id)
		if err != nil {
			return err
		}
		if err := models.RequireOwner(c, actor); err != nil {
			return err
		}
		if !c.IsEditable() {
			return dErrors.Newf(dErrors.CodeInvalidTransition, "case cannot be edited in status %s", c.Status)
		}
		if req.VehicleID != nil {
			c.VehicleID = req.VehicleID
		}
		if req.VehicleData != nil {
			c.VehicleData = req.VehicleData
		}
		if req.RequirementsData != nil {
			c.RequirementsData = req.RequirementsData
		}
		c.UpdatedAt = requestcontext.Now(txCtx)
		if err := s.cases.Update(txCtx, c); err != nil {
			return translateStoreErr(err, "failed to update case")
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete soft-deletes a draft. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id domain.CaseID) error {
	var deleted *models.Case
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.loadForUpdate(txCtx, actor, id)
		if err != nil {
			return err
		}
		if err := models.RequireOwner(c, actor); err != nil {
			return err
		}
		if c.Status != models.StatusDraft {
			return dErrors.Newf(dErrors.CodeInvalidTransition, "only draft cases can be deleted, case is %s", c.Status)
		}
		now := requestcontext.Now(txCtx)
		if _, err := s.timeline.Append(txCtx, timeline.Record{
			TenantID:    c.TenantID,
			CaseID:      c.ID,
			EventType:   tlmodels.EventApplicationDeleted,
			Description: "Application deleted",
			PerformedBy: &actor.ID,
		}); err != nil {
			return err
		}
		c.DeletedAt = &now
		c.UpdatedAt = now
		if err := s.cases.Update(txCtx, c); err != nil {
			return translateStoreErr(err, "failed to delete case")
		}
		deleted = c
		return nil
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, string(tlmodels.EventApplicationDeleted), deleted, actor)
	return nil
}

// ListTimeline returns a case's audit trail, newest first.
func (s *Service) ListTimeline(ctx context.Context, actor domain.Actor, id domain.CaseID) ([]*tlmodels.Entry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.timeline.List(ctx, actor.TenantID, id)
}

// ListCandidates exposes the tenant-scoped candidate read used by automation.
func (s *Service) ListCandidates(ctx context.Context, tenantID domain.TenantID, q models.CandidateQuery) ([]*models.Case, error) {
	out, err := s.cases.ListCandidates(ctx, tenantID, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidate cases")
	}
	return out, nil
}

func (s *Service) loadForUpdate(ctx context.Context, actor domain.Actor, id domain.CaseID) (*models.Case, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	c, err := s.cases.FindByIDForUpdate(ctx, actor.TenantID, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load case")
	}
	if !models.CanView(c, actor) {
		return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return c, nil
}

func translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "case not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// logAudit emits an audit-style log line alongside the timeline entry.
func (s *Service) logAudit(ctx context.Context, event string, c *models.Case, actor domain.Actor, attributes ...any) {
	if s.logger == nil || c == nil {
		return
	}
	args := append(attributes,
		"log_type", "audit",
		"event", event,
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", c.TenantID,
		"case_id", c.ID,
		"actor_id", actor.ID,
		"client_ip", metadata.GetClientIP(ctx),
	)
	s.logger.InfoContext(ctx, event, args...)
}
