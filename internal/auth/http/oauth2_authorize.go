package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
)

// AuthorizeHandler serves GET /oauth/authorize.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Sessions         *sessionCookies
}

// ServeHTTP validates the authorization request, stores it and sends the
// browser on to login, or straight to consent when a session exists.
//
//	@Summary		OAuth2 authorization endpoint
//	@Description	Validates an authorization code request with PKCE (S256).
//	@Description	Unknown clients whose redirect_uri is on a trusted domain are registered on the fly.
//	@Description
//	@Description	**Response:**
//	@Description	- Valid: 302 to /oauth/login or /oauth/consent with request_id
//	@Description	- Error with a trusted redirect_uri: 302 to redirect_uri with error, error_description and state
//	@Description	- Other errors: JSON
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type			query		string					true	"Must be 'code'"	default(code)
//	@Param			client_id				query		string					true	"OAuth2 client identifier"
//	@Param			redirect_uri			query		string					true	"Callback URI"
//	@Param			scope					query		string					false	"Space-delimited list of scopes"	example("openid email meetings:read")
//	@Param			state					query		string					false	"Opaque value returned unchanged"
//	@Param			nonce					query		string					false	"OIDC nonce copied into the id_token"
//	@Param			code_challenge			query		string					true	"PKCE code challenge"	example("E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM")
//	@Param			code_challenge_method	query		string					true	"PKCE method"			Enums(S256)
//	@Success		302						{string}	string					"Redirect to login, consent or the client"
//	@Failure		400						{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		401						{object}	authsdk.ErrorResponse	"Unknown client"
//	@Router			/oauth/authorize [get]
func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	pending, err := h.AuthorizeService.ValidateRequest(r.Context(), service.AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Nonce:               q.Get("nonce"),
	})
	if err != nil {
		var ae *service.AuthorizeError
		if errors.As(err, &ae) && ae.Redirectable() {
			http.Redirect(w, r, service.ErrorRedirect(ae), http.StatusFound)
			return
		}
		writeError(w, r, err)
		return
	}

	next := authsdk.PathLogin
	if _, ok := h.Sessions.current(r); ok {
		next = authsdk.PathConsent
	}
	http.Redirect(w, r, next+"?"+url.Values{"request_id": {pending.RequestID}}.Encode(), http.StatusFound)
}
