package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
)

type UserInfoHandler struct {
	UserService *service.UserService
}

// ServeHTTP handles the OpenID Connect UserInfo endpoint.
//
//	@Summary		Get user information
//	@Description	Returns the claims released by the token's scopes: email and email_verified need 'email', name and picture need 'profile'.
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"OIDC claims"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/oauth/userinfo [get]
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = service.ErrUserNotFound
		}
		writeError(w, r, err)
		return
	}

	profile := service.ProfileFor(user, p.Scopes)
	out := authsdk.UserInfoResponse{
		Sub:     profile.Subject,
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
	}
	if p.HasScope(domain.ScopeEmail) {
		out.EmailVerified = &profile.EmailVerified
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
