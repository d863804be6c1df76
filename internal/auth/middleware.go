package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/isdelr/accounts-be/internal/api/respond"
	"github.com/isdelr/accounts-be/internal/common"
	"github.com/rs/zerolog/log"
)

// TokenCookieName is the cookie carrying the session token for browser clients.
const TokenCookieName = "token"

type contextKey string

// RequesterKey is the context key for the authenticated requester.
const RequesterKey = contextKey("requester")

// WithRequester returns a copy of ctx carrying r.
func WithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, RequesterKey, r)
}

// RequesterFromContext returns the requester stored by Authenticate.
func RequesterFromContext(ctx context.Context) (Requester, bool) {
	r, ok := ctx.Value(RequesterKey).(Requester)
	return r, ok
}

// tokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the token cookie.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, found := strings.Cut(authHeader, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate creates a middleware that validates the session token and
// stores the requester in the request context.
func Authenticate(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				respond.Error(w, http.StatusUnauthorized, "missing auth token")
				return
			}

			claims, err := issuer.ValidateJWT(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected auth token")
				respond.FromError(w, common.ErrInvalidToken)
				return
			}

			requester := Requester{ID: claims.UserID(), Email: claims.Email, Role: claims.Role}
			log.Debug().Str("user_id", requester.ID).Str("role", string(requester.Role)).Msg("Authenticated request")
			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), requester)))
		})
	}
}

// RequireAction creates a middleware that consults the policy for an action
// that does not depend on a specific target account.
func RequireAction(policy Policy, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requester, ok := RequesterFromContext(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "missing auth token")
				return
			}
			if err := policy.Decide(requester, action, "", nil).Err(); err != nil {
				log.Warn().Str("user_id", requester.ID).Str("action", string(action)).Msg("Access denied")
				respond.FromError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
