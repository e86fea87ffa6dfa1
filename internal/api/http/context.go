package http

import (
	"context"

	"teamnet-backend/internal/security"
)

type contextKey struct{}

func withCaller(ctx context.Context, claims *security.UserClaims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// CallerFromContext returns the authenticated caller, or nil on public routes.
func CallerFromContext(ctx context.Context) *security.UserClaims {
	claims, _ := ctx.Value(contextKey{}).(*security.UserClaims)
	return claims
}
