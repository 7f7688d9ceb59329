package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

type accessTokensRepo struct {
	db dbtx
}

const accessTokenColumns = `jti, client_id, user_id, scope, expires_at, revoked_at, created_at`

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens (`+accessTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, NULL, ?)`,
		t.JTI, t.ClientID, t.UserID, joinScopes(t.Scopes), toMillis(t.ExpiresAt), toMillis(t.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *accessTokensRepo) GetAccessToken(ctx context.Context, jti string) (domain.AccessToken, error) {
	var (
		t                    domain.AccessToken
		scope                string
		expiresAt, createdAt int64
		revokedAt            sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+accessTokenColumns+` FROM access_tokens WHERE jti = ?`, jti).
		Scan(&t.JTI, &t.ClientID, &t.UserID, &scope, &expiresAt, &revokedAt, &createdAt)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	t.Scopes = splitAndFilter(scope)
	t.ExpiresAt = fromMillis(expiresAt)
	t.RevokedAt = mapNullTimePtr(revokedAt)
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}

func (r *accessTokensRepo) RevokeAccessToken(ctx context.Context, jti string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET revoked_at = COALESCE(revoked_at, ?) WHERE jti = ?`,
		toMillis(now), jti,
	)
	return requireRow(res, err, store.ErrNotFound)
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE expires_at <= ?`, toMillis(now)))
}
