package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/docchat/internal/api"
	"github.com/cloo-solutions/docchat/internal/domain"
)

type contextKey string

const IdentityKey contextKey = "identity"

type AuthValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Identity, error)
}

// BearerAuth resolves the bearer token to an Identity and rejects the
// request with 401 when it cannot.
func BearerAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.ErrorWithCode(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				api.ErrorWithCode(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid authorization format")
				return
			}

			identity, err := validator.ValidateToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				api.HandleError(w, r, err)
				return
			}

			setRequestUserID(r.Context(), identity.UID)
			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the authenticated caller, or nil on public routes.
func GetIdentity(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(IdentityKey).(*domain.Identity)
	return identity
}

// GetUserID returns the authenticated user's id. Outer middleware that ran
// before auth still sees it through the request info.
func GetUserID(ctx context.Context) string {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.UID
	}
	if info := getRequestInfo(ctx); info != nil {
		return info.user()
	}
	return ""
}
