package testutil

import (
	"net/http"
	"time"

	"caseflow/pkg/domain"
	"caseflow/pkg/requestcontext"
)

// WithActor attaches an authenticated actor to the request, as the bearer
// middleware would.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
