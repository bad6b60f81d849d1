package auth

import (
	"context"
	"strings"
)

type claimsContextKey struct{}

// ContextWithClaims attaches validated access claims to the context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts claims previously attached by the identity gate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(claimsContextKey{}).(*Claims)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// PrincipalFromContext returns the principal described by the attached claims.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return Principal{}, false
	}
	return claims.Principal(), true
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return "", false
	}
	return claims.Subject, true
}
