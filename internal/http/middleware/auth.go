package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/agrocrm/identity/internal/httputil"
	"github.com/agrocrm/identity/pkg/domain"
	"github.com/agrocrm/identity/pkg/token"
)

type contextKey string

// principalKey is the context key for the authenticated principal.
const principalKey contextKey = "principal"

// SessionValidator checks session liveness for a bearer token's session
// reference. Implemented by auth.SessionService.
type SessionValidator interface {
	Validate(ctx context.Context, id uuid.UUID) (*domain.Session, error)
}

// Authenticate turns a bearer access token into a principal on the request
// context. Every failure converges to "no principal" and the request
// continues unauthenticated; which check failed is never revealed to the
// client, and nothing here ever reaches the transport layer as an error.
// A downstream gate (RequireAuth or the entity services) decides how to
// reject unauthenticated requests.
func Authenticate(codec *token.Codec, sessions SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := httputil.BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := codec.Parse(tokenString)
			if err != nil {
				logger.Debug("token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			// A refresh token presented here is treated as absent.
			if claims.TokenType != token.KindAccess {
				logger.Debug("token is not an access token")
				next.ServeHTTP(w, r)
				return
			}

			sessionID, err := uuid.Parse(claims.SessionID)
			if err != nil {
				logger.Debug("token carries no usable session id")
				next.ServeHTTP(w, r)
				return
			}

			// Session state is the authority; a structurally valid token
			// whose session is gone stays unauthenticated.
			if _, err := sessions.Validate(r.Context(), sessionID); err != nil {
				logger.Debug("session not usable", "session_id", sessionID)
				next.ServeHTTP(w, r)
				return
			}

			principal := domain.Principal{
				Subject: claims.Subject,
				Roles:   claims.Roles(),
			}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that carry no principal with a uniform 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := Principal(r.Context()); !ok {
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Principal extracts the authenticated principal from the request context.
// This is the accessor the entity services consume for authorization.
func Principal(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(domain.Principal)
	return principal, ok
}
