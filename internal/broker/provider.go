package broker

import (
	"strings"

	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
)

// Provider is the OAuth and API configuration of one platform.
type Provider struct {
	Platform    domain.Platform
	Credentials Credentials
	RedirectURI string
	AuthURL     string
	TokenURL    string
	APIBaseURL  string
	Scopes      []string
}

// DefaultProvider fills in the public endpoints of a platform. Callers
// add credentials and the redirect URI.
func DefaultProvider(p domain.Platform) Provider {
	switch p {
	case domain.PlatformZoom:
		return Provider{
			Platform:   p,
			AuthURL:    "https://zoom.us/oauth/authorize",
			TokenURL:   "https://zoom.us/oauth/token",
			APIBaseURL: "https://api.zoom.us/v2",
			Scopes:     []string{"user:read"},
		}
	case domain.PlatformAsana:
		return Provider{
			Platform:   p,
			AuthURL:    "https://app.asana.com/-/oauth_authorize",
			TokenURL:   "https://app.asana.com/-/oauth_token",
			APIBaseURL: "https://app.asana.com/api/1.0",
			Scopes:     []string{"default"},
		}
	default:
		panic("broker: no provider defaults for platform " + string(p))
	}
}

// Enabled reports whether credentials are configured.
func (p Provider) Enabled() bool {
	return p.Credentials.ClientID != "" && p.Credentials.ClientSecret != ""
}

// APIURL joins path onto the platform API base URL.
func (p Provider) APIURL(path string) string {
	return strings.TrimRight(p.APIBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (p Provider) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.Credentials.ClientID,
		ClientSecret: p.Credentials.ClientSecret,
		RedirectURL:  p.RedirectURI,
		Scopes:       p.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: StrategyFor(p.Platform).AuthStyle(),
		},
	}
}
