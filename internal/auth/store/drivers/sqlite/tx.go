package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

// errNestedTx is returned when a transaction tries to open another one.
var errNestedTx = errors.New("sqlite: nested transactions are not supported")

// repos hands out repositories bound to either the pool or an open
// transaction, so every query reads the same in both.
type repos struct {
	q dbtx
}

func (r repos) Users() store.Users     { return &usersRepo{db: r.q} }
func (r repos) Clients() store.Clients { return &clientsRepo{db: r.q} }
func (r repos) AuthorizationRequests() store.AuthorizationRequests {
	return &authorizationRequestsRepo{db: r.q}
}
func (r repos) AuthorizationCodes() store.AuthorizationCodes {
	return &authorizationCodesRepo{db: r.q}
}
func (r repos) AccessTokens() store.AccessTokens   { return &accessTokensRepo{db: r.q} }
func (r repos) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{db: r.q} }
func (r repos) Consents() store.Consents           { return &consentsRepo{db: r.q} }
func (r repos) LoginSessions() store.LoginSessions { return &loginSessionsRepo{db: r.q} }
func (r repos) OAuthStates() store.OAuthStates     { return &oauthStatesRepo{db: r.q} }
func (r repos) PlatformConnections() store.PlatformConnections {
	return &platformConnectionsRepo{db: r.q}
}

type txStore struct {
	repos
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{repos: repos{q: tx}, tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close leaves the pool open. The owner of the transaction ends it.
func (t *txStore) Close() error { return nil }

// Ping reports whether the transaction is still usable.
func (t *txStore) Ping(ctx context.Context) error {
	var one int
	return t.tx.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, errNestedTx }

func (t *txStore) WithTx(context.Context, func(store.Tx) error) error { return errNestedTx }

// ApplyMigrations is a no-op inside a transaction. The schema is
// migrated once at startup.
func (t *txStore) ApplyMigrations() error { return nil }
