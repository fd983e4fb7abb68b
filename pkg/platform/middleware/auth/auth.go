// Package auth authenticates the actor behind a request. Token issuance lives
// in an external identity service; this package only verifies bearer tokens.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"caseflow/pkg/domain"
	request "caseflow/pkg/platform/middleware/request"
	"caseflow/pkg/requestcontext"
)

// Claims is the token body issued by the identity service.
type Claims struct {
	TenantID int64  `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ActorValidator turns a raw bearer token into an actor.
type ActorValidator interface {
	ValidateToken(tokenString string) (domain.Actor, error)
}

// HMACValidator verifies HS256 tokens with a shared signing key.
type HMACValidator struct {
	key      []byte
	issuer   string
	leeway   time.Duration
	timeFunc func() time.Time
}

type HMACOption func(*HMACValidator)

func WithIssuer(issuer string) HMACOption {
	return func(v *HMACValidator) { v.issuer = issuer }
}

func WithTimeFunc(fn func() time.Time) HMACOption {
	return func(v *HMACValidator) { v.timeFunc = fn }
}

func NewHMACValidator(signingKey string, opts ...HMACOption) *HMACValidator {
	v := &HMACValidator{key: []byte(signingKey), leeway: 30 * time.Second, timeFunc: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *HMACValidator) ValidateToken(tokenString string) (domain.Actor, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.timeFunc),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, parserOpts...); err != nil {
		return domain.Actor{}, fmt.Errorf("parse token: %w", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("invalid subject claim: %w", err)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Actor{}, err
	}
	actor := domain.Actor{ID: domain.UserID(userID), TenantID: domain.TenantID(claims.TenantID), Role: role}
	if err := actor.Validate(); err != nil {
		return domain.Actor{}, err
	}
	return actor, nil
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireActor rejects requests without a valid bearer token and stores the
// resulting actor in the request context.
func RequireActor(validator ActorValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}
			actor, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
