package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
)

// RevokeHandler serves POST /oauth/revoke following RFC 7009. Unknown,
// invalid and foreign tokens still get 200 so the endpoint cannot be used
// to probe tokens.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes an access token, or a refresh token together with its rotation family (RFC 7009).
//	@Description	Returns 200 OK even for invalid or unknown tokens.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Ignored; the token's own type claim decides"	Enums(access_token, refresh_token)
//	@Param			client_id		formData	string	false	"Client the token was issued to"
//	@Success		200				"Token revoked (or was already invalid)"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Router			/oauth/revoke [post]
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	token := strings.TrimSpace(r.PostForm.Get("token"))
	if token == "" {
		authsdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}
	clientID, _ := clientCredentials(r)

	if err := h.TokenService.Revoke(r.Context(), token, clientID); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}
