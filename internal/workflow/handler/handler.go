package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/workflow/models"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// Engine is the automation surface used by HTTP.
type Engine interface {
	Run(ctx context.Context, actor domain.Actor, dryRun bool, ruleKeys []string) (*models.RunSummary, error)
	DryRunSummary(ctx context.Context, actor domain.Actor) (*models.DashboardSummary, error)
}

type Handler struct {
	engine Engine
	logger *slog.Logger
}

func New(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterAdmin mounts automation routes. Callers must install the staff guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/automation/run", h.HandleRun)
	r.Get("/admin/automation/preview", h.HandlePreview)
}

// RunRequest triggers a run. Omitted dry_run means dry run.
type RunRequest struct {
	DryRun   *bool    `json:"dry_run"`
	RuleKeys []string `json:"rule_keys"`
}

func (r *RunRequest) Validate() error {
	for i, k := range r.RuleKeys {
		if utf8.RuneCountInString(k) > models.MaxRuleKeyLength {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("rule_keys[%d] exceeds %d characters", i, models.MaxRuleKeyLength))
		}
	}
	return nil
}

func (r *RunRequest) IsDryRun() bool {
	return r.DryRun == nil || *r.DryRun
}

func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeJSON[RunRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.engine.Run(ctx, actor, req.IsDryRun(), req.RuleKeys)
	if err != nil {
		h.fail(w, r, "automation run failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	summary, err := h.engine.DryRunSummary(ctx, actor)
	if err != nil {
		h.fail(w, r, "automation preview failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"path", r.URL.Path,
		"error", err,
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
