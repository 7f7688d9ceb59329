package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
)

// IntrospectHandler serves POST /oauth/introspect following RFC 7662.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection Endpoint
//	@Description	Reports whether a token is active (RFC 7662). Inactive tokens only carry active=false.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			token	formData	string							true	"The token to introspect"
//	@Success		200		{object}	authsdk.IntrospectionResponse	"Token introspection result"
//	@Failure		400		{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse			"error, error_description"
//	@Header			200		{string}	Cache-Control					"no-store"
//	@Router			/oauth/introspect [post]
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	token := strings.TrimSpace(r.PostForm.Get("token"))
	if token == "" {
		authsdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	res, err := h.TokenService.Introspect(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !res.Active {
		httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{Active: false})
		return
	}

	c := res.Claims
	out := authsdk.IntrospectionResponse{
		Active:    true,
		Scope:     c.Scope,
		ClientID:  c.ClientID,
		TokenType: string(res.TokenType),
		Sub:       c.Subject,
		Aud:       c.Audience,
		Iss:       c.Issuer,
		Jti:       c.ID,
	}
	if c.ExpiresAt != nil {
		out.Exp = c.ExpiresAt.Unix()
	}
	if c.IssuedAt != nil {
		out.Iat = c.IssuedAt.Unix()
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
