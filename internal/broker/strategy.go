package broker

import (
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
)

// Credentials are this service's OAuth client credentials at a platform.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Strategy decides where client credentials go on a token request.
type Strategy interface {
	AuthHeaders(c Credentials) http.Header
	BodyParams(c Credentials) url.Values

	// AuthStyle is the same choice expressed for golang.org/x/oauth2.
	AuthStyle() oauth2.AuthStyle
}

// basicAuth sends credentials as HTTP Basic (Zoom).
type basicAuth struct{}

func (basicAuth) AuthHeaders(c Credentials) http.Header {
	req := http.Request{Header: http.Header{}}
	req.SetBasicAuth(url.QueryEscape(c.ClientID), url.QueryEscape(c.ClientSecret))
	return req.Header
}

func (basicAuth) BodyParams(Credentials) url.Values { return url.Values{} }

func (basicAuth) AuthStyle() oauth2.AuthStyle { return oauth2.AuthStyleInHeader }

// bodyParams sends credentials as form fields (Asana).
type bodyParams struct{}

func (bodyParams) AuthHeaders(Credentials) http.Header { return http.Header{} }

func (bodyParams) BodyParams(c Credentials) url.Values {
	return url.Values{
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
	}
}

func (bodyParams) AuthStyle() oauth2.AuthStyle { return oauth2.AuthStyleInParams }

// StrategyFor returns the credential strategy of a platform.
func StrategyFor(p domain.Platform) Strategy {
	switch p {
	case domain.PlatformZoom:
		return basicAuth{}
	case domain.PlatformAsana:
		return bodyParams{}
	default:
		panic("broker: no credential strategy for platform " + string(p))
	}
}
