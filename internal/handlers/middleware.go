package handlers

import (
	"context"
	"net/http"
	"strings"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

type contextKey struct{}

type MiddlewareProvider struct {
	verifier primary.JWTService
}

// New creates the middleware provider. A nil verifier lets every request through.
func New(verifier primary.JWTService) *MiddlewareProvider {
	return &MiddlewareProvider{
		verifier: verifier,
	}
}

// Require wraps next so only bearers of a token allowing role reach it
func (m *MiddlewareProvider) Require(role domain.Role, next http.Handler) http.Handler {
	if m.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			ResponseError(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		payload, err := m.verifier.VerifyToken(r.Context(), tokenString)
		if err != nil {
			ResponseError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if !payload.Role.Allows(role) {
			ResponseError(w, "Insufficient role", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, payload)))
	})
}

// Caller returns the verified token payload of a request, if any
func Caller(ctx context.Context) (domain.AuthPayload, bool) {
	payload, ok := ctx.Value(contextKey{}).(domain.AuthPayload)
	return payload, ok
}
