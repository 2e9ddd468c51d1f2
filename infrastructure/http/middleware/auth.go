package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cloudcommerce/user-service/application/port/outbound"
	domainerr "github.com/cloudcommerce/user-service/domain/error"
	"github.com/cloudcommerce/user-service/infrastructure/http/response"
)

type authContextKey struct{}

type AuthMiddleware struct {
	tokenService outbound.TokenService
}

func NewAuthMiddleware(tokenService outbound.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// RequireAuth rejects requests without a valid Bearer token.
func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			response.FromError(w, domainerr.ErrMissingFields("Authorization"), false)
			return
		}

		info, err := m.tokenService.Verify(token)
		if err != nil {
			if errors.Is(err, outbound.ErrTokenExpired) {
				response.FromError(w, domainerr.ErrTokenExpired(err), false)
				return
			}
			response.FromError(w, domainerr.ErrSignatureInvalid(err), false)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserClaims(r.Context(), &info.Claims)))
	}
}

// OptionalAuth attaches claims when a valid Bearer token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		info, err := m.tokenService.Verify(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserClaims(r.Context(), &info.Claims)))
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func WithUserClaims(ctx context.Context, claims *outbound.TokenClaims) context.Context {
	return context.WithValue(ctx, authContextKey{}, claims)
}

// GetUserClaims retrieves user claims from context
func GetUserClaims(ctx context.Context) *outbound.TokenClaims {
	if claims, ok := ctx.Value(authContextKey{}).(*outbound.TokenClaims); ok {
		return claims
	}
	return nil
}
