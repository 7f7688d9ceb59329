package http

import (
	"net/http"

	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// MFAHandler manages the optional TOTP second factor used on /oauth/login.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleEnroll handles POST /v1/mfa/totp/enroll
//
//	@Summary		Start TOTP enrollment
//	@Description	Generates a TOTP secret for the authenticated user. It is not active until confirmed.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse	"Secret and otpauth URL"
//	@Failure		400	{object}	authsdk.ErrorResponse		"A second factor is already enrolled"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Router			/v1/mfa/totp/enroll [post]
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	enrollment, err := h.MFAService.EnrollTOTP(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret: enrollment.Secret,
		URL:    enrollment.URL,
	})
}

// HandleConfirm handles POST /v1/mfa/totp/confirm
//
//	@Summary		Confirm TOTP enrollment
//	@Description	Enables the enrolled secret once a valid code for it is presented.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPConfirmRequest	true	"Secret and code"
//	@Success		204		"Enabled"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid code or request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/mfa/totp/confirm [post]
func (h *MFAHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.TOTPConfirmRequest
	if err := httpx.DecodeJSON(w, r, &req, false); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}

	if err := h.MFAService.ConfirmTOTP(ctx, p.UserID, req.Secret, req.Code); err != nil {
		slogx.FromContext(ctx).Warn("TOTP confirmation failed", "err", err)
		writeError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("TOTP enabled")
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove handles DELETE /v1/mfa/totp
//
//	@Summary		Remove TOTP
//	@Description	Disables TOTP after verifying a current code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPRemoveRequest	true	"Current code"
//	@Success		204		"Removed"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid code or TOTP not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/mfa/totp [delete]
func (h *MFAHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.TOTPRemoveRequest
	if err := httpx.DecodeJSON(w, r, &req, false); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}

	if err := h.MFAService.RemoveTOTP(ctx, p.UserID, req.Code); err != nil {
		writeError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("TOTP removed")
	w.WriteHeader(http.StatusNoContent)
}
