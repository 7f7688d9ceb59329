package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConsumed is returned by the conditional single-use updates when no
	// row qualified: the record was already used, revoked or has expired.
	ErrConsumed = errors.New("store: already consumed or expired")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so that a transaction can only be opened from the root.
type Store interface {
	Users() Users
	Clients() Clients
	AuthorizationRequests() AuthorizationRequests
	AuthorizationCodes() AuthorizationCodes
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
	Consents() Consents
	LoginSessions() LoginSessions
	PlatformConnections() PlatformConnections
	OAuthStates() OAuthStates

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	//
	// Inside fn only the repos of tx may be used. The in-memory driver has a
	// single connection and would block on the outer store.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used by the login form. Emails compare case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateMFASecret sets or clears (nil) the TOTP secret.
	UpdateMFASecret(ctx context.Context, userID string, secret *string) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Clients interface {
	// GetClientByID fetches a client together with its redirect URIs.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts the client row and every redirect URI it carries.
	CreateClient(ctx context.Context, c domain.Client) error

	// AddRedirectURI registers uri for the client. Adding an existing URI is a no-op.
	AddRedirectURI(ctx context.Context, clientID, uri string, now time.Time) error
}

type AuthorizationRequests interface {
	CreateAuthorizationRequest(ctx context.Context, r domain.AuthorizationRequest) error

	// GetAuthorizationRequest returns the row regardless of its state.
	GetAuthorizationRequest(ctx context.Context, idHash string) (domain.AuthorizationRequest, error)

	// ConsumeAuthorizationRequest marks a pending, unexpired request consumed
	// and returns it. A second call returns ErrConsumed.
	ConsumeAuthorizationRequest(ctx context.Context, idHash string, now time.Time) (domain.AuthorizationRequest, error)

	DeleteExpiredAuthorizationRequests(ctx context.Context, now time.Time) (int64, error)
}

type AuthorizationCodes interface {
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	// GetAuthorizationCodeByHash fetches a code by its fingerprint when redeeming.
	GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error)

	// MarkAuthorizationCodeUsed is the single conditional update that
	// decides a redemption race. The loser gets ErrConsumed.
	MarkAuthorizationCodeUsed(ctx context.Context, id string, now time.Time) error

	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)
}

type AccessTokens interface {
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error
	GetAccessToken(ctx context.Context, jti string) (domain.AccessToken, error)

	// RevokeAccessToken is idempotent; it returns ErrNotFound for an unknown jti.
	RevokeAccessToken(ctx context.Context, jti string, now time.Time) error

	DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, jti string) (domain.RefreshToken, error)

	// TouchRefreshToken records a successful use.
	TouchRefreshToken(ctx context.Context, jti string, now time.Time) error

	// RotateRefreshToken revokes an active token and fails with ErrConsumed
	// when it was already revoked, so only one rotation of a token wins.
	RotateRefreshToken(ctx context.Context, jti string, now time.Time) error

	// RevokeRefreshToken is idempotent; it returns ErrNotFound for an unknown jti.
	RevokeRefreshToken(ctx context.Context, jti string, now time.Time) error

	// RevokeRefreshTokenFamily revokes jti and every token rotated from it.
	RevokeRefreshTokenFamily(ctx context.Context, jti string, now time.Time) (int64, error)

	// RevokeUserClientRefreshTokens bulk revocation for a user+client pair (logout).
	RevokeUserClientRefreshTokens(ctx context.Context, userID, clientID string, now time.Time) (int64, error)

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Consents interface {
	GetConsent(ctx context.Context, userID, clientID string) (domain.Consent, error)

	// UpsertConsent replaces scope and consented_at and clears revoked_at.
	UpsertConsent(ctx context.Context, c domain.Consent) error

	RevokeConsent(ctx context.Context, userID, clientID string, now time.Time) error
}

type LoginSessions interface {
	CreateLoginSession(ctx context.Context, s domain.LoginSession) error
	GetLoginSession(ctx context.Context, idHash string) (domain.LoginSession, error)
	RevokeLoginSession(ctx context.Context, idHash string, now time.Time) error
	DeleteExpiredLoginSessions(ctx context.Context, now time.Time) (int64, error)
}

type PlatformConnections interface {
	GetPlatformConnection(ctx context.Context, userID string, platform domain.Platform) (domain.PlatformConnection, error)

	// UpsertPlatformConnection keeps a single row per (user, platform) and
	// reactivates it.
	UpsertPlatformConnection(ctx context.Context, c domain.PlatformConnection) error

	// UpdatePlatformTokens stores the result of a refresh. An empty
	// refreshCT keeps the current refresh token.
	UpdatePlatformTokens(ctx context.Context, id, accessCT, refreshCT string, expiresAt, now time.Time) error

	// DeactivatePlatformConnection soft-deletes the link and wipes its tokens.
	DeactivatePlatformConnection(ctx context.Context, userID string, platform domain.Platform, now time.Time) error

	ListPlatformConnections(ctx context.Context, userID string) ([]domain.PlatformConnection, error)
}

type OAuthStates interface {
	CreateOAuthState(ctx context.Context, s domain.OAuthState) error

	// ConsumeOAuthState marks an unused, unexpired state used and returns it.
	// A replay returns ErrConsumed.
	ConsumeOAuthState(ctx context.Context, stateHash string, now time.Time) (domain.OAuthState, error)

	DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error)
}
