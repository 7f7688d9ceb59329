package httpx

import (
	"context"
	"slices"
	"time"
)

type ctxKey string

const CtxKeyPrincipal ctxKey = "principal"

// Principal is the authenticated caller behind a bearer token.
type Principal struct {
	UserID    string
	Email     string
	Name      string
	ClientID  string
	TokenID   string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope reports whether the token was granted scope.
func (p Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// HasAllScopes reports whether every listed scope was granted.
func (p Principal) HasAllScopes(scopes ...string) bool {
	for _, s := range scopes {
		if !p.HasScope(s) {
			return false
		}
	}
	return true
}

// HasAnyScope reports whether at least one listed scope was granted.
func (p Principal) HasAnyScope(scopes ...string) bool {
	return slices.ContainsFunc(scopes, p.HasScope)
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, CtxKeyPrincipal, p)
}

// PrincipalFromContext returns the principal set by AuthnMiddleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(CtxKeyPrincipal).(Principal)
	return p, ok
}
