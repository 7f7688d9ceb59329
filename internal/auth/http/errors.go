package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/internal/broker"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

const bearerRealm = "taskbridge"

// oauthErrors maps service sentinels onto their wire form. Anything not
// listed is a server_error.
var oauthErrors = []struct {
	err error
	out *authsdk.OAuth2Error
}{
	{service.ErrInvalidRequest, authsdk.ErrInvalidRequest},
	{service.ErrInvalidClient, authsdk.ErrInvalidClient},
	{service.ErrInvalidGrant, authsdk.ErrInvalidGrant},
	{service.ErrInvalidScope, authsdk.ErrInvalidScope},
	{service.ErrUnsupportedGrantType, authsdk.ErrUnsupportedGrantType},
	{service.ErrUnsupportedResponseType, authsdk.ErrUnsupportedResponseType},
	{service.ErrAccessDenied, authsdk.ErrAccessDenied},
	{service.ErrInvalidCredentials, authsdk.ErrLoginFailed},
	{service.ErrMFARequired, authsdk.ErrMFARequired},
	{service.ErrLoginRequired, authsdk.ErrLoginRequired},
	{service.ErrMissingToken, authsdk.ErrMissingToken},
	{service.ErrInvalidToken, authsdk.ErrInvalidToken},
	{service.ErrExpiredToken, authsdk.ErrExpiredToken},
	{service.ErrRevokedToken, authsdk.ErrRevokedToken},
	{service.ErrUserNotFound, authsdk.ErrUserNotFound},
	{service.ErrInvalidTOTPCode, authsdk.ErrInvalidRequest.WithDescription("invalid one-time code")},
	{service.ErrMFAAlreadyEnabled, authsdk.ErrInvalidRequest.WithDescription("a second factor is already enrolled")},
	{service.ErrMFANotEnabled, authsdk.ErrInvalidRequest.WithDescription("no second factor is enrolled")},
	{broker.ErrInvalidState, authsdk.ErrInvalidState},
	{broker.ErrPlatformNotEnabled, authsdk.NewOAuth2Error(http.StatusNotFound, authsdk.ErrorCodeInvalidRequest, "platform is not enabled")},
	{domain.ErrUnknownPlatform, authsdk.NewOAuth2Error(http.StatusNotFound, authsdk.ErrorCodeInvalidRequest, "unknown platform")},
}

// toOAuth2Error translates err. Descriptions attached with %w by the
// service layer are kept for client-facing errors.
func toOAuth2Error(err error) *authsdk.OAuth2Error {
	var oe *authsdk.OAuth2Error
	if errors.As(err, &oe) {
		return oe
	}
	for _, m := range oauthErrors {
		if !errors.Is(err, m.err) {
			continue
		}
		if desc := detail(err, m.err); desc != "" && m.out.StatusCode < http.StatusInternalServerError {
			return m.out.WithDescription(desc)
		}
		return m.out
	}
	return authsdk.ErrServerError
}

// detail strips the sentinel prefix from "invalid_grant: code expired".
func detail(err, sentinel error) string {
	var ae *service.AuthorizeError
	if errors.As(err, &ae) {
		return ae.Description
	}
	msg := err.Error()
	if msg == sentinel.Error() {
		return ""
	}
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return ""
}

// writeError renders err as an OAuth2 JSON error. Server errors are
// logged with the underlying cause, which never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	oe := toOAuth2Error(err)
	if oe.StatusCode >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
	}
	oe.WriteError(w)
}

// writeAuthError is the httpx.ErrorWriter for bearer-protected routes.
// The challenge header always carries invalid_token (RFC 6750); the body
// carries the precise reason.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	oe := toOAuth2Error(err)
	switch {
	case errors.Is(err, service.ErrMissingToken):
		httpx.WriteBearerChallenge(w, bearerRealm, "", "")
	case oe.StatusCode == http.StatusUnauthorized:
		httpx.WriteBearerChallenge(w, bearerRealm, authsdk.ErrorCodeInvalidToken, oe.Description)
	}
	writeError(w, r, err)
}

// writeBrokerError renders platform failures. A reconnect becomes the
// 409 body pointing at the connect endpoint.
func (rt *Router) writeBrokerError(w http.ResponseWriter, r *http.Request, err error) {
	if rr, ok := broker.IsReconnectRequired(err); ok {
		slogx.FromContext(r.Context()).Info("platform reconnect required", "platform", rr.Platform, "reason", rr.Reason)
		(&authsdk.ReconnectRequiredError{
			Platform:   string(rr.Platform),
			ConnectURL: rt.connectURL(rr.Platform),
		}).WriteError(w)
		return
	}
	switch {
	case errors.Is(err, broker.ErrUnauthorizedAfterRefresh),
		errors.Is(err, broker.ErrRefreshFailed),
		errors.Is(err, broker.ErrProviderResponse):
		slogx.FromContext(r.Context()).Warn("platform call failed", "err", err)
		authsdk.NewOAuth2Error(http.StatusBadGateway, authsdk.ErrorCodeServerError, "the platform request failed").WriteError(w)
		return
	}
	writeError(w, r, err)
}
