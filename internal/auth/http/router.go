package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/internal/broker"
	"github.com/aussiebroadwan/taskbridge/pkg/authsdk"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"

	_ "github.com/aussiebroadwan/taskbridge/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthorizeService *service.AuthorizeService
	ConsentService   *service.ConsentService
	LoginService     *service.LoginService
	TokenService     *service.TokenService
	UserService      *service.UserService
	MFAService       *service.MFAService
	Bearer           *service.BearerAuthenticator
	Broker           *broker.Broker

	// LockCheck pings the shared refresh lease store. Nil when the broker
	// runs with the in-process locker only.
	LockCheck func(ctx context.Context) error

	// SecureCookies marks the session cookie Secure. On unless the issuer
	// is plain http.
	SecureCookies  bool
	AllowPlainPKCE bool

	// Limits defaults to httpx.DefaultRateLimits.
	Limits httpx.RateLimits
}

func NewRouter(
	keys *jwtx.KeySet,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		keys:          keys,
		issuer:        strings.TrimSuffix(issuer, "/"),
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		store:         st,
		logger:        logger,
		SecureCookies: !strings.HasPrefix(issuer, "http://"),
		Limits:        httpx.DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, "/livez", "/readyz"),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerWellKnown()
	r.registerTools()
	r.registerPlatforms()
	r.registerMFA()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			TaskBridge Authorization Server API
//	@version		0.1.0
//	@description	OAuth 2.1 / OpenID Connect authorization server for agents, with a token broker for linked Zoom and Asana accounts.
//	@description
//	@description				Access tokens are ES256-signed JWTs and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/taskbridge
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn verifies the bearer token and records the Principal.
func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.Bearer, writeAuthError)
}

func (r *Router) connectURL(p domain.Platform) string {
	return r.issuer + "/platforms/" + string(p) + "/connect"
}

func (r *Router) registerOAuth2() {
	sessions := &sessionCookies{Logins: r.LoginService, Secure: r.SecureCookies}

	authorizeHandler := &AuthorizeHandler{AuthorizeService: r.AuthorizeService, Sessions: sessions}
	r.Mux.Handle("GET "+authsdk.PathAuthorize,
		httpx.Chain(authorizeHandler,
			httpx.RateLimitByIP(r.Limits.API),
		),
	)

	loginHandler := &LoginHandler{AuthorizeService: r.AuthorizeService, Sessions: sessions}
	r.Mux.Handle("GET "+authsdk.PathLogin,
		httpx.Chain(http.HandlerFunc(loginHandler.HandleGet),
			httpx.RateLimitByIP(r.Limits.API),
		),
	)
	// Password attempts are limited per IP and email.
	r.Mux.Handle("POST "+authsdk.PathLogin,
		httpx.Chain(http.HandlerFunc(loginHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(r.Limits.Login, "email"),
		),
	)

	consentHandler := &ConsentHandler{ConsentService: r.ConsentService, Sessions: sessions}
	r.Mux.Handle("GET "+authsdk.PathConsent,
		httpx.Chain(http.HandlerFunc(consentHandler.HandleGet),
			httpx.RateLimitByIP(r.Limits.Token),
		),
	)
	r.Mux.Handle("POST "+authsdk.PathConsent,
		httpx.Chain(http.HandlerFunc(consentHandler.HandlePost),
			httpx.RateLimitByIP(r.Limits.Token),
		),
	)

	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+authsdk.PathToken,
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(r.Limits.Token),
		),
	)

	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+authsdk.PathRevoke,
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(r.Limits.Token),
		),
	)

	introspectHandler := &IntrospectHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+authsdk.PathIntrospect,
		httpx.Chain(introspectHandler,
			r.authn(),
			httpx.RateLimitByUser(r.Limits.Token),
		),
	)

	logoutHandler := &LogoutHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+authsdk.PathLogout,
		httpx.Chain(logoutHandler,
			r.authn(),
			httpx.RateLimitByUser(r.Limits.Token),
		),
	)

	userInfo := httpx.Chain(&UserInfoHandler{UserService: r.UserService},
		r.authn(),
		httpx.RateLimitByUser(r.Limits.API),
	)
	r.Mux.Handle("GET "+authsdk.PathUserInfo, userInfo)
	r.Mux.Handle("POST "+authsdk.PathUserInfo, userInfo)
}

func (r *Router) registerWellKnown() {
	r.Mux.Handle("GET "+authsdk.PathJWKS,
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)

	discovery := httpx.Chain(DiscoveryHandler(r.issuer, r.keys, r.AllowPlainPKCE),
		httpx.RateLimitByIP(r.Limits.Public),
	)
	r.Mux.Handle("GET "+authsdk.PathOIDCDiscovery, discovery)
	r.Mux.Handle("GET "+authsdk.PathASMetadata, discovery)
}

func (r *Router) registerTools() {
	h := &ToolsHandler{router: r, tools: r.builtinTools()}

	r.Mux.Handle("POST "+authsdk.PathTools+"{name}",
		httpx.Chain(h,
			r.authn(),
			httpx.RateLimitByUser(r.Limits.API),
		),
	)
}

func (r *Router) registerPlatforms() {
	h := &PlatformsHandler{
		router:   r,
		Broker:   r.Broker,
		Sessions: &sessionCookies{Logins: r.LoginService, Secure: r.SecureCookies},
	}

	r.Mux.Handle("GET /platforms/{platform}/connect",
		httpx.Chain(http.HandlerFunc(h.HandleConnect),
			httpx.RateLimitByIP(r.Limits.Token),
		),
	)
	r.Mux.Handle("GET /platforms/{platform}/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(r.Limits.Token),
		),
	)

	r.Mux.Handle("GET "+authsdk.PathPlatforms,
		httpx.Chain(http.HandlerFunc(h.HandleList),
			r.authn(),
			httpx.RateLimitByUser(r.Limits.API),
		),
	)
	r.Mux.Handle("DELETE "+authsdk.PathPlatforms+"/{platform}",
		httpx.Chain(http.HandlerFunc(h.HandleDisconnect),
			r.authn(),
			httpx.RateLimitByUser(r.Limits.Token),
		),
	)
}

func (r *Router) registerMFA() {
	if r.MFAService == nil {
		return
	}
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			r.authn(),
			httpx.RateLimitByUser(r.Limits.Token),
		),
	)
	// Code guessing is limited like password attempts.
	r.Mux.Handle("POST /v1/mfa/totp/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			r.authn(),
			httpx.RateLimitByUser(r.Limits.Login),
		),
	)
	r.Mux.Handle("DELETE /v1/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.HandleRemove),
			r.authn(),
			httpx.RateLimitByUser(r.Limits.Login),
		),
	)
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently.
	r.Mux.Handle("GET "+authsdk.PathLivez,
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET "+authsdk.PathReadyz,
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.LockCheck),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}
