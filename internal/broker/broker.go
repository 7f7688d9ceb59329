// Package broker keeps users' third-party platform tokens usable. It
// refreshes them before they expire and after a 401, serializing the
// refresh of each (user, platform) pair so a rotated refresh token is
// never spent twice.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// Defaults.
const (
	DefaultRefreshSkew = 120 * time.Second
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultRefreshTimeout bounds a whole refresh, lease wait included.
	// It is independent of the callers' request contexts.
	DefaultRefreshTimeout = 30 * time.Second

	// defaultTokenLifetime applies when a provider omits expires_in.
	defaultTokenLifetime = time.Hour
	maxResponseSize      = 1 << 20
)

type Options struct {
	Store     store.Store
	Cipher    *cryptox.TokenCipher
	Providers []Provider

	// HTTPClient is used for token and API calls. A client with
	// HTTPTimeout is built when nil.
	HTTPClient  *http.Client
	HTTPTimeout time.Duration

	// Locker defaults to LocalLocker.
	Locker         Locker
	RefreshSkew    time.Duration
	RefreshTimeout time.Duration
	Now            func() time.Time
}

type Broker struct {
	store     store.Store
	cipher    *cryptox.TokenCipher
	providers map[domain.Platform]Provider
	client    *http.Client
	locker    Locker
	skew      time.Duration
	timeout   time.Duration
	now       func() time.Time

	group singleflight.Group
}

func New(opts Options) (*Broker, error) {
	if opts.Store == nil || opts.Cipher == nil {
		return nil, errors.New("broker: store and cipher are required")
	}

	b := &Broker{
		store:     opts.Store,
		cipher:    opts.Cipher,
		providers: make(map[domain.Platform]Provider),
		client:    opts.HTTPClient,
		locker:    opts.Locker,
		skew:      opts.RefreshSkew,
		timeout:   opts.RefreshTimeout,
		now:       opts.Now,
	}
	for _, p := range opts.Providers {
		if _, err := domain.ParsePlatform(string(p.Platform)); err != nil {
			return nil, fmt.Errorf("broker: %w: %q", err, p.Platform)
		}
		b.providers[p.Platform] = p
	}
	if b.client == nil {
		timeout := opts.HTTPTimeout
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}
		b.client = &http.Client{Timeout: timeout}
	}
	if b.locker == nil {
		b.locker = LocalLocker{}
	}
	if b.skew <= 0 {
		b.skew = DefaultRefreshSkew
	}
	if b.timeout <= 0 {
		b.timeout = DefaultRefreshTimeout
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

// Provider returns the configuration of an enabled platform.
func (b *Broker) Provider(p domain.Platform) (Provider, error) {
	prov, ok := b.providers[p]
	if !ok || !prov.Enabled() {
		return Provider{}, fmt.Errorf("%w: %s", ErrPlatformNotEnabled, p)
	}
	return prov, nil
}

// AccessToken returns a usable access token, refreshing it first when it
// expires within the refresh skew.
func (b *Broker) AccessToken(ctx context.Context, userID string, p domain.Platform) (string, error) {
	tok, _, err := b.accessToken(ctx, userID, p)
	return tok, err
}

// accessToken also returns the ciphertext the token was read from so a
// later 401 can tell whether someone refreshed in the meantime.
func (b *Broker) accessToken(ctx context.Context, userID string, p domain.Platform) (string, string, error) {
	conn, err := b.connection(ctx, userID, p)
	if err != nil {
		return "", "", err
	}

	if conn.ExpiresAt.Sub(b.now()) > b.skew {
		tok, err := b.cipher.Decrypt(conn.AccessTokenCT)
		if err != nil {
			return "", "", fmt.Errorf("decrypt %s access token: %w", p, err)
		}
		return tok, conn.AccessTokenCT, nil
	}

	slogx.FromContext(ctx).Debug("platform token near expiry, refreshing", "platform", p, "expires_at", conn.ExpiresAt)
	return b.refresh(ctx, userID, p, conn.AccessTokenCT)
}

// Do runs call with a valid access token. A 401 triggers exactly one
// refresh and one retry; a second 401 is ErrUnauthorizedAfterRefresh.
// The caller owns the returned response body.
func (b *Broker) Do(ctx context.Context, userID string, p domain.Platform, call func(ctx context.Context, accessToken string) (*http.Response, error)) (*http.Response, error) {
	tok, ct, err := b.accessToken(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, tok)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	drain(resp)

	slogx.FromContext(ctx).Info("platform rejected access token, refreshing", "platform", p)
	tok, _, err = b.refresh(ctx, userID, p, ct)
	if err != nil {
		return nil, err
	}

	resp, err = call(ctx, tok)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedAfterRefresh, p)
	}
	return resp, nil
}

// GetJSON calls GET path on the platform API through Do and decodes the
// JSON body into out.
func (b *Broker) GetJSON(ctx context.Context, userID string, p domain.Platform, path string, out any) error {
	prov, err := b.Provider(p)
	if err != nil {
		return err
	}

	resp, err := b.Do(ctx, userID, p, func(ctx context.Context, accessToken string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, prov.APIURL(path), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")
		return b.client.Do(req)
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrProviderResponse, p, path, resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out)
}

// refresh coalesces concurrent refreshes of the same pair. After taking
// the lease it re-reads the row: if another caller already replaced
// staleCT with a live token, that token is reused instead of spending
// the refresh token again.
//
// The shared refresh ignores caller cancellation and is bounded by the
// refresh timeout instead, so a rotated refresh token is always stored.
// Each caller stops waiting when its own context ends.
func (b *Broker) refresh(ctx context.Context, userID string, p domain.Platform, staleCT string) (string, string, error) {
	key := userID + "|" + string(p)

	type result struct{ tok, ct string }
	ch := b.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()

		release, err := b.locker.Acquire(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}
		defer release()

		conn, err := b.connection(ctx, userID, p)
		if err != nil {
			return nil, err
		}
		if conn.AccessTokenCT != staleCT && b.now().Before(conn.ExpiresAt) {
			tok, err := b.cipher.Decrypt(conn.AccessTokenCT)
			if err != nil {
				return nil, fmt.Errorf("decrypt %s access token: %w", p, err)
			}
			return result{tok, conn.AccessTokenCT}, nil
		}

		tok, ct, err := b.refreshConnection(ctx, conn)
		if err != nil {
			return nil, err
		}
		return result{tok, ct}, nil
	})

	select {
	case <-ctx.Done():
		return "", "", fmt.Errorf("%w: %w", ErrRefreshFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", "", res.Err
		}
		if res.Shared {
			slogx.FromContext(ctx).Debug("joined in-flight platform refresh", "platform", p)
		}
		r := res.Val.(result)
		return r.tok, r.ct, nil
	}
}

// tokenResponse is the RFC 6749 token endpoint body, success or error.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b *Broker) refreshConnection(ctx context.Context, conn domain.PlatformConnection) (string, string, error) {
	l := slogx.FromContext(ctx)

	prov, err := b.Provider(conn.Platform)
	if err != nil {
		return "", "", err
	}
	if conn.RefreshTokenCT == "" {
		return "", "", reconnect(conn.Platform, ReasonMissingRefreshToken)
	}
	refreshToken, err := b.cipher.Decrypt(conn.RefreshTokenCT)
	if err != nil {
		return "", "", fmt.Errorf("decrypt %s refresh token: %w", conn.Platform, err)
	}

	strategy := StrategyFor(conn.Platform)
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	for k, vs := range strategy.BodyParams(prov.Credentials) {
		form[k] = vs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, prov.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	for k, vs := range strategy.AuthHeaders(prov.Credentials) {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		l.Warn("platform refresh request failed", "platform", conn.Platform, "error", err)
		return "", "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return "", "", fmt.Errorf("%w: status %d: %w", ErrRefreshFailed, resp.StatusCode, err)
	}

	if body.Error == "invalid_grant" {
		l.Warn("platform refresh token rejected, connection deactivated", "platform", conn.Platform)
		if err := b.store.PlatformConnections().DeactivatePlatformConnection(ctx, conn.UserID, conn.Platform, b.now()); err != nil && !errors.Is(err, store.ErrNotFound) {
			l.Error("failed to deactivate connection", "platform", conn.Platform, "error", err)
		}
		return "", "", reconnect(conn.Platform, ReasonInvalidGrant)
	}
	if resp.StatusCode != http.StatusOK || body.AccessToken == "" {
		return "", "", fmt.Errorf("%w: status %d: %s", ErrRefreshFailed, resp.StatusCode, body.Error)
	}

	now := b.now()
	lifetime := time.Duration(body.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}

	accessCT, err := b.cipher.Encrypt(body.AccessToken)
	if err != nil {
		return "", "", err
	}
	var refreshCT string
	if body.RefreshToken != "" {
		if refreshCT, err = b.cipher.Encrypt(body.RefreshToken); err != nil {
			return "", "", err
		}
	}

	if err := b.store.PlatformConnections().UpdatePlatformTokens(ctx, conn.ID, accessCT, refreshCT, now.Add(lifetime), now); err != nil {
		return "", "", fmt.Errorf("store refreshed %s tokens: %w", conn.Platform, err)
	}

	l.Info("platform token refreshed", "platform", conn.Platform, "rotated_refresh", refreshCT != "", "expires_in", lifetime)
	return body.AccessToken, accessCT, nil
}

// connection loads the active connection or a not_connected reconnect error.
func (b *Broker) connection(ctx context.Context, userID string, p domain.Platform) (domain.PlatformConnection, error) {
	conn, err := b.store.PlatformConnections().GetPlatformConnection(ctx, userID, p)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !conn.Active) {
		return domain.PlatformConnection{}, reconnect(p, ReasonNotConnected)
	}
	if err != nil {
		return domain.PlatformConnection{}, err
	}
	return conn, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
}
