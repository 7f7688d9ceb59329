package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
)

// TokenHandler serves POST /oauth/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Redeems an authorization code (with PKCE) or a refresh token.
//	@Description	Confidential clients authenticate with HTTP Basic or client_secret in the body; public clients send only client_id.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, refresh_token)
//	@Param			code			formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI, byte-identical to the authorize request"
//	@Param			code_verifier	formData	string					false	"PKCE code_verifier (authorization_code grant)"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			client_id		formData	string					false	"Client identifier"
//	@Param			client_secret	formData	string					false	"Client secret (confidential clients)"
//	@Param			scope			formData	string					false	"Narrower scope for a refresh"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, refresh_token, id_token, token_type, expires_in, scope"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/oauth/token [post]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	form := r.PostForm
	clientID, clientSecret := clientCredentials(r)

	var (
		pair *domain.TokenPair
		err  error
	)
	switch form.Get("grant_type") {
	case "authorization_code":
		pair, err = h.TokenService.ExchangeAuthorizationCode(r.Context(), service.AuthorizationCodeGrant{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Code:         strings.TrimSpace(form.Get("code")),
			RedirectURI:  form.Get("redirect_uri"),
			CodeVerifier: strings.TrimSpace(form.Get("code_verifier")),
		})
	case "refresh_token":
		pair, err = h.TokenService.ExchangeRefreshToken(r.Context(), service.RefreshGrant{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RefreshToken: strings.TrimSpace(form.Get("refresh_token")),
			Scopes:       domain.ParseScope(form.Get("scope")),
		})
	case "":
		authsdk.ErrInvalidRequest.WithDescription("grant_type is required").WriteError(w)
		return
	default:
		authsdk.ErrUnsupportedGrantType.WriteError(w)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		RefreshToken: pair.RefreshToken,
		Scope:        pair.Scope,
		IDToken:      pair.IDToken,
	})
}

// clientCredentials reads client_secret_basic first, then the body.
// Basic credentials are form-encoded per RFC 6749 2.3.1.
func clientCredentials(r *http.Request) (id, secret string) {
	if u, p, ok := r.BasicAuth(); ok {
		id, _ = url.QueryUnescape(u)
		secret, _ = url.QueryUnescape(p)
		return id, secret
	}
	return strings.TrimSpace(r.PostForm.Get("client_id")), r.PostForm.Get("client_secret")
}
