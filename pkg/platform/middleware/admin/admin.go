// Package admin guards staff-only routes.
package admin

import (
	"log/slog"
	"net/http"

	request "caseflow/pkg/platform/middleware/request"
	"caseflow/pkg/requestcontext"
)

// RequireStaff must run after auth.RequireActor.
func RequireStaff(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, ok := requestcontext.Actor(ctx)
			if !ok || !actor.IsStaff() {
				logger.WarnContext(ctx, "staff route denied",
					"request_id", request.GetRequestID(ctx),
					"user_id", actor.ID,
					"role", actor.Role,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"staff role required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
