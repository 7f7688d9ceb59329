package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
)

// PKCEChallenge holds the PKCE verifier and challenge pair.
// The verifier is kept secret by the client, and the challenge is sent to the authorization endpoint.
type PKCEChallenge struct {
	Verifier  string
	Challenge string
	Method    string
}

// GeneratePKCEChallenge creates a new S256 verifier and challenge pair.
func GeneratePKCEChallenge() *PKCEChallenge {
	v := cryptox.NewPKCEVerifier()
	return &PKCEChallenge{
		Verifier:  v,
		Challenge: cryptox.S256Challenge(v),
		Method:    cryptox.PKCEMethodS256,
	}
}

// AuthorizeParams are the query parameters of an authorization request.
type AuthorizeParams struct {
	ClientID    string
	RedirectURI string
	State       string
	Nonce       string
	Scopes      []string
	PKCE        *PKCEChallenge
}

// Credentials log a user in during AuthorizeWithPassword. OTP is only
// needed for users with a second factor.
type Credentials struct {
	Email    string
	Password string
	OTP      string
}

// AuthorizeResult is what the client receives on its redirect_uri.
type AuthorizeResult struct {
	Code  string
	State string
}

// BuildAuthorizeURL constructs the URL the user's browser is sent to.
//
// Example:
//
//	pkce := authsdk.GeneratePKCEChallenge()
//	u := client.BuildAuthorizeURL(authsdk.AuthorizeParams{
//	    ClientID:    "cli_...",
//	    RedirectURI: "https://claude.ai/api/mcp/auth_callback",
//	    State:       state,
//	    Scopes:      []string{"openid", "email"},
//	    PKCE:        pkce,
//	})
func (c *SDKClient) BuildAuthorizeURL(p AuthorizeParams) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", p.ClientID)
	params.Set("redirect_uri", p.RedirectURI)

	if p.State != "" {
		params.Set("state", p.State)
	}
	if p.Nonce != "" {
		params.Set("nonce", p.Nonce)
	}
	if len(p.Scopes) > 0 {
		params.Set("scope", strings.Join(p.Scopes, " "))
	}
	if p.PKCE != nil {
		params.Set("code_challenge", p.PKCE.Challenge)
		params.Set("code_challenge_method", p.PKCE.Method)
	}

	return c.url(PathAuthorize) + "?" + params.Encode()
}

// AuthorizeWithPassword walks the browser leg of the flow the way a user
// agent would: authorize, login, consent, and finally the redirect back to
// the client. approve=false denies consent, which surfaces as an
// access_denied *OAuth2Error.
func (c *SDKClient) AuthorizeWithPassword(
	ctx context.Context,
	p AuthorizeParams,
	creds Credentials,
	approve bool,
) (*AuthorizeResult, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	browser := &http.Client{
		Timeout:   c.HTTPClient.Timeout,
		Transport: c.HTTPClient.Transport,
		Jar:       jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	step, err := c.browse(ctx, browser, http.MethodGet, c.BuildAuthorizeURL(p), nil)
	if err != nil {
		return nil, err
	}

	// authorize -> login -> consent -> client is at most four hops.
	for range 4 {
		if step.location == "" {
			return nil, parseErrorResponse(&http.Response{StatusCode: step.status}, step.body)
		}
		if strings.HasPrefix(step.location, p.RedirectURI) {
			code, state, err := ParseAuthorizationCallback(step.location)
			if err != nil {
				return nil, err
			}
			return &AuthorizeResult{Code: code, State: state}, nil
		}

		next, err := url.Parse(step.location)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redirect: %w", err)
		}
		requestID := next.Query().Get("request_id")

		switch next.Path {
		case PathLogin:
			step, err = c.browse(ctx, browser, http.MethodPost, c.url(PathLogin), url.Values{
				"request_id": {requestID},
				"email":      {creds.Email},
				"password":   {creds.Password},
				"otp":        {creds.OTP},
			})
		case PathConsent:
			step, err = c.browse(ctx, browser, http.MethodGet, c.resolve(next), nil)
			if err == nil && step.location == "" && step.status == http.StatusOK {
				var prompt ConsentPrompt
				if err := json.Unmarshal(step.body, &prompt); err != nil {
					return nil, fmt.Errorf("failed to decode consent prompt: %w", err)
				}
				decision := "deny"
				if approve {
					decision = "approve"
				}
				step, err = c.browse(ctx, browser, http.MethodPost, c.url(PathConsent), url.Values{
					"request_id": {prompt.RequestID},
					"decision":   {decision},
				})
			}
		default:
			return nil, fmt.Errorf("unexpected redirect to %s", step.location)
		}
		if err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("authorization did not complete")
}

type browserStep struct {
	status   int
	location string
	body     []byte
}

func (c *SDKClient) browse(ctx context.Context, hc *http.Client, method, target string, form url.Values) (browserStep, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return browserStep{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return browserStep{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return browserStep{}, fmt.Errorf("failed to read response body: %w", err)
	}

	step := browserStep{status: resp.StatusCode, body: b}
	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther {
		step.location = resp.Header.Get("Location")
	}
	return step, nil
}

// resolve makes a server-relative redirect absolute against BaseURL.
func (c *SDKClient) resolve(u *url.URL) string {
	if u.IsAbs() {
		return u.String()
	}
	return c.BaseURL + u.RequestURI()
}

// ParseAuthorizationCallback extracts the code and state from a redirect
// back to the client. An error redirect is returned as *OAuth2Error.
//
// Example:
//
//	code, state, err := authsdk.ParseAuthorizationCallback("https://localhost/callback?code=xyz&state=abc")
func ParseAuthorizationCallback(callbackURL string) (code, state string, err error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse callback URL: %w", err)
	}

	query := u.Query()
	if errorCode := query.Get("error"); errorCode != "" {
		return "", "", &OAuth2Error{
			StatusCode:  http.StatusFound,
			Code:        errorCode,
			Description: query.Get("error_description"),
		}
	}

	code = query.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("callback missing authorization code")
	}

	return code, query.Get("state"), nil
}
