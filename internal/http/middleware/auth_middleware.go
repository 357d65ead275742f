package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sandeepkv93/session-console/internal/domain"
	"github.com/sandeepkv93/session-console/internal/http/response"
	"github.com/sandeepkv93/session-console/internal/repository"
	"github.com/sandeepkv93/session-console/internal/security"
)

type contextKey string

const (
	ClaimsContextKey    contextKey = "claims"
	PrincipalContextKey contextKey = "principal"
)

// SessionResolver finds the live session an access token is bound to.
type SessionResolver interface {
	Current(ctx context.Context, userID uint, sessionID string) (*domain.Session, error)
}

// Principal is the authenticated caller: a user acting through one session.
type Principal struct {
	UserID    uint
	SessionID string
	Session   *domain.Session
}

// AuthMiddleware accepts a bearer access token whose session is still live.
// A token of a revoked or expired session is rejected even before it expires.
func AuthMiddleware(jwtMgr *security.JWTManager, sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			principal := &Principal{UserID: userID, SessionID: claims.SessionID}
			if sessions != nil {
				session, err := sessions.Current(r.Context(), userID, claims.SessionID)
				if err != nil {
					if errors.Is(err, repository.ErrSessionNotFound) {
						response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "session is no longer active", nil)
						return
					}
					response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to resolve session", nil)
					return
				}
				principal.Session = session
			}
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return p, ok
}
