package http

import (
	"net/http"

	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
)

// LogoutHandler serves POST /oauth/logout.
type LogoutHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Logout
//	@Description	Revokes the presented access token and the user's refresh tokens for the same client.
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Success		204	"Logged out"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/oauth/logout [post]
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.TokenService.Logout(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
