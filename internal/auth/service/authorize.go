package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// AuthorizeService validates /oauth/authorize calls and parks them as
// server-side authorization requests until login and consent complete.
type AuthorizeService struct {
	Store store.Store

	// TrustedDomains are redirect hosts that may auto-register clients and
	// new redirect URIs. A domain also trusts its subdomains.
	TrustedDomains []string

	AllowPlainPKCE bool
	RequestTTL     time.Duration
	Now            func() time.Time
}

// AuthorizeRequest holds the raw query parameters of an authorize call.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
}

// PendingAuthorization is a validated request. RequestID is the opaque
// handle given to the browser; only its fingerprint is stored.
type PendingAuthorization struct {
	RequestID string
	Request   domain.AuthorizationRequest
	Client    domain.Client
}

// ValidateRequest runs the authorize checks in order and persists the
// request on success. Failures are *AuthorizeError; the ones raised after
// the redirect target is trusted carry RedirectURI and State.
//
//  1. response_type must be code (unsupported_response_type)
//  2. client_id and redirect_uri are required (invalid_request)
//  3. a code_challenge with method S256 is required (invalid_request)
//  4. unknown clients are auto-registered from trusted domains (invalid_client)
//  5. the redirect_uri must be registered or trusted (invalid_request)
//  6. every scope must be recognized (invalid_scope)
func (s *AuthorizeService) ValidateRequest(ctx context.Context, req AuthorizeRequest) (*PendingAuthorization, error) {
	log := slogx.FromContext(ctx)
	now := clock(s.Now)

	if strings.TrimSpace(req.ResponseType) != "code" {
		return nil, &AuthorizeError{Err: ErrUnsupportedResponseType, Description: "response_type must be code"}
	}

	clientID := strings.TrimSpace(req.ClientID)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if clientID == "" || redirectURI == "" {
		return nil, &AuthorizeError{Err: ErrInvalidRequest, Description: "client_id and redirect_uri are required"}
	}
	if !validRedirectURI(redirectURI) {
		return nil, &AuthorizeError{Err: ErrInvalidRequest, Description: "redirect_uri must be an absolute URL without a fragment"}
	}

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	known := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	trustedDomain := s.isTrustedDomain(redirectURI)
	trusted := trustedDomain || (known && client.HasRedirectURI(redirectURI))

	// Once the target is trusted, errors go back to the client by redirect.
	fail := func(code error, desc string) *AuthorizeError {
		e := &AuthorizeError{Err: code, Description: desc}
		if trusted {
			e.RedirectURI = redirectURI
			e.State = req.State
		}
		return e
	}

	challenge := strings.TrimSpace(req.CodeChallenge)
	method := strings.TrimSpace(req.CodeChallengeMethod)
	if challenge == "" {
		return nil, fail(ErrInvalidRequest, "code_challenge is required")
	}
	if !cryptox.SupportedPKCEMethod(method, s.AllowPlainPKCE) {
		return nil, fail(ErrInvalidRequest, "code_challenge_method must be S256")
	}
	if !cryptox.ValidPKCEVerifier(challenge) {
		return nil, fail(ErrInvalidRequest, "code_challenge is malformed")
	}

	if !known {
		if !trustedDomain {
			return nil, &AuthorizeError{Err: ErrInvalidClient, Description: "unknown client"}
		}
		client, err = s.autoRegister(ctx, clientID, redirectURI, now)
		if err != nil {
			return nil, err
		}
		log.Info("auto-registered client", "client_id", clientID, "redirect_uri", redirectURI)
	}

	if !client.HasRedirectURI(redirectURI) {
		if !trustedDomain {
			return nil, &AuthorizeError{Err: ErrInvalidRequest, Description: "redirect_uri is not registered for this client"}
		}
		if err := s.Store.Clients().AddRedirectURI(ctx, client.ID, redirectURI, now); err != nil {
			return nil, err
		}
		client.RedirectURIs = append(client.RedirectURIs, redirectURI)
		log.Info("registered redirect uri", "client_id", client.ID, "redirect_uri", redirectURI)
	}

	scopes := domain.ParseScope(req.Scope)
	if len(scopes) == 0 {
		scopes = domain.DefaultScopes
	}
	for _, sc := range scopes {
		if !domain.IsRecognizedScope(sc) {
			return nil, fail(ErrInvalidScope, fmt.Sprintf("unknown scope %q", sc))
		}
		if len(client.AllowedScopes) > 0 && !domain.ContainsAllScopes(client.AllowedScopes, []string{sc}) {
			return nil, fail(ErrInvalidScope, fmt.Sprintf("scope %q is not allowed for this client", sc))
		}
	}

	requestID, idHash, err := cryptox.GenerateOpaque(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	ttl := s.RequestTTL
	if ttl <= 0 {
		ttl = domain.AuthorizationRequestTTL
	}

	ar := domain.AuthorizationRequest{
		IDHash:              idHash,
		ClientID:            client.ID,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		State:               req.State,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		Nonce:               strings.TrimSpace(req.Nonce),
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}
	if err := s.Store.AuthorizationRequests().CreateAuthorizationRequest(ctx, ar); err != nil {
		return nil, err
	}

	return &PendingAuthorization{RequestID: requestID, Request: ar, Client: client}, nil
}

// LoadPending resolves a request id handed out by ValidateRequest. Unknown,
// consumed and expired requests are all ErrInvalidRequest.
func (s *AuthorizeService) LoadPending(ctx context.Context, requestID string) (*PendingAuthorization, error) {
	return loadPending(ctx, s.Store, requestID, clock(s.Now))
}

func loadPending(ctx context.Context, st store.Store, requestID string, now time.Time) (*PendingAuthorization, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrInvalidRequest)
	}

	ar, err := st.AuthorizationRequests().GetAuthorizationRequest(ctx, cryptox.FingerprintToken(requestID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown authorization request", ErrInvalidRequest)
		}
		return nil, err
	}
	if !ar.Pending(now) {
		return nil, fmt.Errorf("%w: authorization request expired or already used", ErrInvalidRequest)
	}

	client, err := st.Clients().GetClientByID(ctx, ar.ClientID)
	if err != nil {
		return nil, err
	}

	return &PendingAuthorization{RequestID: requestID, Request: ar, Client: client}, nil
}

func (s *AuthorizeService) autoRegister(ctx context.Context, clientID, redirectURI string, now time.Time) (domain.Client, error) {
	c := domain.Client{
		ID:             clientID,
		Name:           redirectHost(redirectURI),
		Type:           domain.ClientPublic,
		RedirectURIs:   []string{redirectURI},
		AutoRegistered: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Clients().CreateClient(ctx, c)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a registration race; use the winner's row.
		return s.Store.Clients().GetClientByID(ctx, clientID)
	}
	if err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

// isTrustedDomain requires https, except for loopback hosts.
func (s *AuthorizeService) isTrustedDomain(rawURI string) bool {
	u, err := url.Parse(rawURI)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(host) {
			return false
		}
	default:
		return false
	}

	for _, d := range s.TrustedDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func validRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != "" && u.Fragment == ""
}

func redirectHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Hostname()
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// buildRedirect adds params to base, keeping any query it already has.
func buildRedirect(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Set(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ErrorRedirect renders e as a redirect to its trusted target.
func ErrorRedirect(e *AuthorizeError) string {
	return buildRedirect(e.RedirectURI, url.Values{
		"error":             {e.Err.Error()},
		"error_description": {e.Description},
		"state":             {e.State},
	})
}
