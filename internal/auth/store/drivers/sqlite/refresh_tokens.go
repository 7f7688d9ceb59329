package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

type refreshTokensRepo struct {
	db dbtx
}

const refreshTokenColumns = `jti, parent_jti, client_id, user_id, scope, expires_at, revoked_at, last_used_at, created_at`

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?)`,
		t.JTI, mapStringNull(t.ParentJTI), t.ClientID, t.UserID, joinScopes(t.Scopes),
		toMillis(t.ExpiresAt), toMillis(t.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, jti string) (domain.RefreshToken, error) {
	var (
		t                    domain.RefreshToken
		parent               sql.NullString
		scope                string
		expiresAt, createdAt int64
		revokedAt, lastUsed  sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE jti = ?`, jti).
		Scan(&t.JTI, &parent, &t.ClientID, &t.UserID, &scope, &expiresAt, &revokedAt, &lastUsed, &createdAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ParentJTI = mapNullString(parent)
	t.Scopes = splitAndFilter(scope)
	t.ExpiresAt = fromMillis(expiresAt)
	t.RevokedAt = mapNullTimePtr(revokedAt)
	t.LastUsedAt = mapNullTimePtr(lastUsed)
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}

func (r *refreshTokensRepo) TouchRefreshToken(ctx context.Context, jti string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET last_used_at = ? WHERE jti = ?`, toMillis(now), jti)
	return requireRow(res, err, store.ErrNotFound)
}

func (r *refreshTokensRepo) RotateRefreshToken(ctx context.Context, jti string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ?, last_used_at = ?
		WHERE jti = ? AND revoked_at IS NULL AND expires_at > ?`,
		toMillis(now), toMillis(now), jti, toMillis(now),
	)
	return requireRow(res, err, store.ErrConsumed)
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, jti string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = COALESCE(revoked_at, ?) WHERE jti = ?`,
		toMillis(now), jti,
	)
	return requireRow(res, err, store.ErrNotFound)
}

func (r *refreshTokensRepo) RevokeRefreshTokenFamily(ctx context.Context, jti string, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		WITH RECURSIVE family(jti) AS (
			SELECT jti FROM refresh_tokens WHERE jti = ?
			UNION
			SELECT rt.jti FROM refresh_tokens rt JOIN family f ON rt.parent_jti = f.jti
		)
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE jti IN (SELECT jti FROM family) AND revoked_at IS NULL`,
		jti, toMillis(now),
	))
}

func (r *refreshTokensRepo) RevokeUserClientRefreshTokens(ctx context.Context, userID, clientID string, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE user_id = ? AND client_id = ? AND revoked_at IS NULL`,
		toMillis(now), userID, clientID,
	))
}

// DeleteExpiredRefreshTokens keeps revoked but unexpired rows so reuse of a
// rotated token is still detected.
func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, toMillis(now)))
}
