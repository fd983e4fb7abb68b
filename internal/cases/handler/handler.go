package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/cases/models"
	"caseflow/internal/cases/service"
	tlmodels "caseflow/internal/timeline/models"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// Service is the case lifecycle surface used by HTTP.
type Service interface {
	Create(ctx context.Context, actor domain.Actor, req service.CreateRequest) (*models.Case, error)
	Get(ctx context.Context, actor domain.Actor, id domain.CaseID) (*models.Case, error)
	UpdateDraft(ctx context.Context, actor domain.Actor, id domain.CaseID, req service.UpdateRequest) (*models.Case, error)
	Submit(ctx context.Context, actor domain.Actor, id domain.CaseID, requirementsData map[string]any) (*models.Case, error)
	Cancel(ctx context.Context, actor domain.Actor, id domain.CaseID) (*models.Case, error)
	Delete(ctx context.Context, actor domain.Actor, id domain.CaseID) error
	ListTimeline(ctx context.Context, actor domain.Actor, id domain.CaseID) ([]*tlmodels.Entry, error)
	Review(ctx context.Context, actor domain.Actor, id domain.CaseID, req service.ReviewRequest) (*models.Case, error)
	RequestInfo(ctx context.Context, actor domain.Actor, id domain.CaseID, message string) (*models.Case, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts applicant routes. Callers must install actor authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cases", h.HandleCreate)
	r.Get("/cases/{id}", h.HandleGet)
	r.Patch("/cases/{id}", h.HandleUpdate)
	r.Delete("/cases/{id}", h.HandleDelete)
	r.Post("/cases/{id}/submit", h.HandleSubmit)
	r.Post("/cases/{id}/cancel", h.HandleCancel)
	r.Get("/cases/{id}/timeline", h.HandleTimeline)
}

// RegisterAdmin mounts staff routes. Callers must install the staff guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/cases/{id}/status", h.HandleReview)
	r.Post("/admin/cases/{id}/request-info", h.HandleRequestInfo)
}

type timelineResponse struct {
	CaseID  domain.CaseID     `json:"case_id"`
	Entries []*tlmodels.Entry `json:"entries"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[CreateCaseRequest](w, r, h.logger)
	if !ok {
		return
	}
	in, err := req.ToService()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Create(ctx, actor, in)
	if err != nil {
		h.fail(w, r, "create case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndCase(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "get case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndCase(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[UpdateCaseRequest](w, r, h.logger)
	if !ok {
		return
	}
	in, err := req.ToService()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.UpdateDraft(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, "update case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndCase(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, "delete case failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndCase(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[SubmitCaseRequest](w, r, h.logger)
	if !ok {
		return
	}
	c, err := h.service.Submit(r.Context(), actor, id, req.RequirementsData)
	if err != nil {
		h.fail(w, r, "submit case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndCase(w, r)
	if !ok {
		return
	}
	c, err := h.service.Cancel(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "cancel case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndCase(w, r)
	if !ok {
		return
	}
	entries, err := h.service.ListTimeline(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "list timeline failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, timelineResponse{CaseID: id, Entries: entries})
}

func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndCase(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[ReviewRequest](w, r, h.logger)
	if !ok {
		return
	}
	in, err := req.ToService()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Review(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, "review case failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleRequestInfo(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndCase(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[RequestInfoRequest](w, r, h.logger)
	if !ok {
		return
	}
	c, err := h.service.RequestInfo(r.Context(), actor, id, req.Message)
	if err != nil {
		h.fail(w, r, "request info failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := requestcontext.Actor(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.Actor{}, false
	}
	return actor, true
}

func (h *Handler) actorAndCase(w http.ResponseWriter, r *http.Request) (domain.Actor, domain.CaseID, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return domain.Actor{}, 0, false
	}
	id, err := domain.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Actor{}, 0, false
	}
	return actor, id, true
}

// fail logs server-side failures at error and client mistakes at warn.
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
