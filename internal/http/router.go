// Package httpapi assembles the HTTP surface: shared middleware, health and
// metrics endpoints, and the applicant and staff route groups.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caseflow/internal/platform/metrics"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/platform/middleware/admin"
	"caseflow/pkg/platform/middleware/auth"
	"caseflow/pkg/platform/middleware/metadata"
	request "caseflow/pkg/platform/middleware/request"
	"caseflow/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// Routes is implemented by feature handlers.
type Routes interface {
	Register(r chi.Router)
}

// AdminRoutes is implemented by feature handlers with staff-only endpoints.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps bundles what the router needs. Metrics and Health are optional.
type Deps struct {
	Logger    *slog.Logger
	Validator auth.ActorValidator
	Metrics   *metrics.Metrics
	Health    map[string]HealthCheck
	Routes    []Routes
	Admin     []AdminRoutes
}

// NewRouter wires all endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", handleHealth(deps.Health, deps.Logger))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor(deps.Validator, deps.Logger))
		for _, routes := range deps.Routes {
			routes.Register(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireStaff(deps.Logger))
			for _, routes := range deps.Admin {
				routes.RegisterAdmin(r)
			}
		})
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleHealth(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
