package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// Authenticator resolves an Authorization header into a Principal.
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (Principal, error)
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// AuthnMiddleware rejects requests without a valid bearer token and puts
// the Principal into the request context for downstream handlers.
func AuthnMiddleware(auth Authenticator, onError ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			p, err := auth.Authenticate(ctx, r.Header.Get("Authorization"))
			if err != nil {
				slogx.FromContext(ctx).Warn("bearer authentication failed", "err", err)
				onError(w, r, err)
				return
			}

			ctx = WithPrincipal(ctx, p)
			ctx = slogx.WithAttrs(ctx, "user_id", p.UserID, "client_id", p.ClientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteBearerChallenge writes the RFC 6750 WWW-Authenticate header.
// An empty code produces a bare challenge, as for a missing token.
func WriteBearerChallenge(w http.ResponseWriter, realm, code, desc string) {
	v := `Bearer realm="` + realm + `"`
	if code != "" {
		v += `, error="` + code + `"`
	}
	if desc != "" {
		v += `, error_description="` + desc + `"`
	}
	w.Header().Set("WWW-Authenticate", v)
}
