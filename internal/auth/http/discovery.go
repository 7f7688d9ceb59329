package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
)

// wellKnownMaxAge bounds client caching of JWKS and discovery metadata.
// It must stay below the key rotation grace period.
const wellKnownMaxAge = 5 * time.Minute

// JWKSHandler serves the public keys that verify issued tokens, including
// keys retired from signing that are still in their grace period.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify JWTs.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get]
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteCacheableJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()), wellKnownMaxAge)
	}
}

// DiscoveryHandler serves the OpenID Provider metadata. The same document
// answers RFC 8414 authorization server metadata requests.
//
//	@Summary		Discovery metadata
//	@Description	OpenID Connect discovery and OAuth 2.0 authorization server metadata.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.DiscoveryResponse
//	@Router			/.well-known/openid-configuration [get]
//	@Router			/.well-known/oauth-authorization-server [get]
func DiscoveryHandler(issuer string, keys *jwtx.KeySet, allowPlainPKCE bool) http.HandlerFunc {
	methods := []string{cryptox.PKCEMethodS256}
	if allowPlainPKCE {
		methods = append(methods, cryptox.PKCEMethodPlain)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteCacheableJSON(w, http.StatusOK, authsdk.DiscoveryResponse{
			Issuer:                            issuer,
			AuthorizationEndpoint:             issuer + authsdk.PathAuthorize,
			TokenEndpoint:                     issuer + authsdk.PathToken,
			UserinfoEndpoint:                  issuer + authsdk.PathUserInfo,
			JWKSURI:                           issuer + authsdk.PathJWKS,
			RevocationEndpoint:                issuer + authsdk.PathRevoke,
			IntrospectionEndpoint:             issuer + authsdk.PathIntrospect,
			ScopesSupported:                   domain.RecognizedScopes,
			ResponseTypesSupported:            []string{"code"},
			GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
			CodeChallengeMethodsSupported:     methods,
			TokenEndpointAuthMethodsSupported: []string{"none", "client_secret_basic", "client_secret_post"},
			SubjectTypesSupported:             []string{"public"},
			IDTokenSigningAlgValuesSupported:  keys.Algorithms(),
		}, wellKnownMaxAge)
	}
}
