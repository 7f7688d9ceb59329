package authsdk

import (
	"time"

	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
)

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
type ErrorResponse struct {
	// Error is the error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error" example:"invalid_grant"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description,omitempty" example:"the grant is invalid, expired or revoked"`
}

// ReconnectRequiredResponse is the 409 body for a platform that needs the
// user to re-authorize.
type ReconnectRequiredResponse struct {
	ErrorResponse

	Platform   string `json:"platform" example:"zoom"`
	ConnectURL string `json:"connect_url,omitempty" example:"https://auth.example.com/platforms/zoom/connect"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
type TokenResponse struct {
	// AccessToken is the JWT access token used to authenticate API requests
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type" example:"Bearer"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in" example:"3600"`

	// RefreshToken is a JWT of type refresh_token
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty" example:"openid profile email"`

	// IDToken is present when the openid scope was granted
	IDToken string `json:"id_token,omitempty"`
}

// IntrospectionResponse is the RFC 7662 token introspection response.
// Inactive tokens only carry Active=false.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	Iss       string   `json:"iss,omitempty"`
	Jti       string   `json:"jti,omitempty"`
}

// ============================================================================
// User Types
// ============================================================================

// UserInfoResponse is the OpenID Connect UserInfo response. Email fields
// require the email scope, Name and Picture the profile scope.
type UserInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// ============================================================================
// Consent Types
// ============================================================================

// ScopeDescription pairs a scope with the text shown to the user.
type ScopeDescription struct {
	Name        string `json:"name" example:"meetings:read"`
	Description string `json:"description" example:"Read your Zoom meetings"`
}

// ConsentPrompt describes a pending authorization awaiting a decision.
type ConsentPrompt struct {
	RequestID  string             `json:"request_id"`
	ClientID   string             `json:"client_id"`
	ClientName string             `json:"client_name"`
	Scopes     []ScopeDescription `json:"scopes"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// ============================================================================
// Platform Types
// ============================================================================

// PlatformConnection is a linked third-party account, without tokens.
type PlatformConnection struct {
	Platform    string    `json:"platform" example:"asana"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	ConnectedAt time.Time `json:"connected_at"`
}

// ListConnectionsResponse lists the caller's active platform connections.
type ListConnectionsResponse struct {
	Connections []PlatformConnection `json:"connections"`
}

// ============================================================================
// Tool Types
// ============================================================================

// ToolResponse wraps a tool invocation result.
type ToolResponse struct {
	Tool   string `json:"tool" example:"whoami"`
	Result any    `json:"result"`
}

// ============================================================================
// Discovery Types
// ============================================================================

// DiscoveryResponse is the OpenID Provider / RFC 8414 metadata document.
type DiscoveryResponse struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
	Lock     string `json:"lock,omitempty"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set served at /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS

// ============================================================================
// MFA Types
// ============================================================================

// TOTPEnrollResponse carries a freshly generated TOTP secret. Nothing is
// stored until it is confirmed with a code.
type TOTPEnrollResponse struct {
	Secret string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	URL    string `json:"otpauth_url" example:"otpauth://totp/TaskBridge:alice@example.com?secret=JBSWY3DPEHPK3PXP"`
}

// TOTPConfirmRequest enables the enrolled secret.
type TOTPConfirmRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code" example:"123456"`
}

// TOTPRemoveRequest disables TOTP after proving possession.
type TOTPRemoveRequest struct {
	Code string `json:"code" example:"123456"`
}
