package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// Endpoint paths served by the authorization server.
const (
	PathAuthorize     = "/oauth/authorize"
	PathLogin         = "/oauth/login"
	PathConsent       = "/oauth/consent"
	PathToken         = "/oauth/token"
	PathRevoke        = "/oauth/revoke"
	PathIntrospect    = "/oauth/introspect"
	PathLogout        = "/oauth/logout"
	PathUserInfo      = "/oauth/userinfo"
	PathJWKS          = "/.well-known/jwks.json"
	PathOIDCDiscovery = "/.well-known/openid-configuration"
	PathASMetadata    = "/.well-known/oauth-authorization-server"
	PathTools         = "/v1/tools/"
	PathPlatforms     = "/v1/platforms"
	PathLivez         = "/livez"
	PathReadyz        = "/readyz"
)

// SDKClient talks to the taskbridge authorization server on behalf of an
// OAuth client such as an agent.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with a 10 second timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
