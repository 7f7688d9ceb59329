package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	// RFC 6749 / RFC 6750
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeServerError             = "server_error"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeInsufficientScope       = "insufficient_scope"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"

	// Bearer authentication refinements. The WWW-Authenticate header always
	// says invalid_token; the body carries the precise reason.
	ErrorCodeMissingToken = "missing_token"
	ErrorCodeExpiredToken = "expired_token"
	ErrorCodeRevokedToken = "revoked_token"
	ErrorCodeUserNotFound = "user_not_found"

	ErrorCodeMFARequired       = "mfa_required"
	ErrorCodeLoginRequired     = "login_required"
	ErrorCodeInvalidState      = "invalid_state"
	ErrorCodeReconnectRequired = "reconnect_required"
	ErrorCodeUnknownTool       = "unknown_tool"
)

// ============================================================================
// OAuth2Error - Standard OAuth2 error type
// ============================================================================

// OAuth2Error represents a standard OAuth2 error response per RFC 6749.
// It implements the error interface and can be used both by the server
// (to write HTTP responses) and by the SDK client (to represent errors).
type OAuth2Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description,omitempty"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithDescription returns a copy carrying a more specific description.
func (e *OAuth2Error) WithDescription(desc string) *OAuth2Error {
	cp := *e
	cp.Description = desc
	return &cp
}

// WriteError writes this OAuth2Error to an HTTP response writer.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// ============================================================================
// Predefined OAuth2 Errors
// ============================================================================

var (
	// ErrInvalidRequest is returned when the request is missing a required parameter,
	// includes an invalid parameter value, or is otherwise malformed.
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidClient is returned when the client is unknown or failed to
	// authenticate.
	ErrInvalidClient = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidClient,
		Description: "invalid client",
	}

	// ErrInvalidGrant is returned when the authorization code or refresh token
	// is invalid, expired, revoked, or was issued to another client.
	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "the grant is invalid, expired or revoked",
	}

	// ErrUnsupportedGrantType is returned for any grant other than
	// authorization_code and refresh_token.
	ErrUnsupportedGrantType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "grant type not supported",
	}

	// ErrInvalidScope is returned when the requested scope is invalid, unknown,
	// malformed, or exceeds the scope granted by the resource owner.
	ErrInvalidScope = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidScope,
		Description: "requested scope is invalid",
	}

	// ErrServerError is returned when the server hit an unexpected condition.
	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	// ErrInvalidContentType is returned when the Content-Type header is not
	// application/x-www-form-urlencoded as required by OAuth2 spec.
	ErrInvalidContentType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "content-type must be application/x-www-form-urlencoded",
	}

	// ErrInvalidFormBody is returned when the form body cannot be parsed.
	ErrInvalidFormBody = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "invalid form body",
	}

	ErrMissingToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeMissingToken,
		Description: "bearer token required",
	}

	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is invalid",
	}

	ErrExpiredToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeExpiredToken,
		Description: "the access token has expired",
	}

	ErrRevokedToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeRevokedToken,
		Description: "the access token has been revoked",
	}

	ErrUserNotFound = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUserNotFound,
		Description: "the token subject no longer exists",
	}

	// ErrInsufficientScope is returned when the access token lacks required scopes.
	ErrInsufficientScope = &OAuth2Error{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeInsufficientScope,
		Description: "the access token does not have the required scopes",
	}

	// ErrAccessDenied is returned when the resource owner denied the request
	// and no redirect target is available.
	ErrAccessDenied = &OAuth2Error{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccessDenied,
		Description: "access denied",
	}

	// ErrUnsupportedResponseType is returned for any response_type except code.
	ErrUnsupportedResponseType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedResponseType,
		Description: "response type not supported",
	}

	ErrLoginFailed = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeAccessDenied,
		Description: "invalid email or password",
	}

	ErrMFARequired = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeMFARequired,
		Description: "a valid one-time code is required",
	}

	ErrLoginRequired = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeLoginRequired,
		Description: "sign in before continuing",
	}

	ErrInvalidState = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidState,
		Description: "the state is unknown, expired or already used",
	}

	ErrUnknownTool = &OAuth2Error{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeUnknownTool,
		Description: "no such tool",
	}
)

// NewOAuth2Error creates a new OAuth2Error with the given status code, error code, and description.
func NewOAuth2Error(statusCode int, code, description string) *OAuth2Error {
	return &OAuth2Error{
		StatusCode:  statusCode,
		Code:        code,
		Description: description,
	}
}

// ============================================================================
// Reconnect Required
// ============================================================================

// ReconnectRequiredError tells the agent that the user must re-link a
// third-party platform before the call can succeed. Sent as 409 Conflict.
type ReconnectRequiredError struct {
	Platform   string `json:"platform"`
	ConnectURL string `json:"connect_url,omitempty"`
	Reason     string `json:"-"`
}

// Error implements the error interface.
func (e *ReconnectRequiredError) Error() string {
	return fmt.Sprintf("%s: %s must be reconnected", ErrorCodeReconnectRequired, e.Platform)
}

// WriteError writes the 409 response.
func (e *ReconnectRequiredError) WriteError(w http.ResponseWriter) {
	desc := e.Reason
	if desc == "" {
		desc = "the " + e.Platform + " connection must be re-authorized"
	}
	httpx.WriteJSON(w, http.StatusConflict, ReconnectRequiredResponse{
		ErrorResponse: ErrorResponse{Error: ErrorCodeReconnectRequired, ErrorDescription: desc},
		Platform:      e.Platform,
		ConnectURL:    e.ConnectURL,
	})
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into a typed error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusConflict {
		var rr ReconnectRequiredResponse
		if err := json.Unmarshal(body, &rr); err == nil && rr.Error == ErrorCodeReconnectRequired {
			return &ReconnectRequiredError{
				Platform:   rr.Platform,
				ConnectURL: rr.ConnectURL,
				Reason:     rr.ErrorDescription,
			}
		}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &OAuth2Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
