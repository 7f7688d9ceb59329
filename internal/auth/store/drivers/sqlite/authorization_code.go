package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

type authorizationCodesRepo struct {
	db dbtx
}

const authorizationCodeColumns = `id, code_hash, client_id, user_id, redirect_uri, scope, code_challenge,
	code_challenge_method, nonce, created_at, expires_at, used_at`

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes (`+authorizationCodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		code.ID, code.CodeHash, code.ClientID, code.UserID, code.RedirectURI, joinScopes(code.Scopes),
		code.CodeChallenge, code.CodeChallengeMethod, mapStringNull(code.Nonce),
		toMillis(code.CreatedAt), toMillis(code.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+authorizationCodeColumns+` FROM authorization_codes WHERE code_hash = ?`, hash)
	code, err := scanAuthorizationCode(row)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	return code, nil
}

func (r *authorizationCodesRepo) MarkAuthorizationCodeUsed(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE authorization_codes SET used_at = ?
		WHERE id = ? AND used_at IS NULL AND expires_at > ?`,
		toMillis(now), id, toMillis(now),
	)
	return requireRow(res, err, store.ErrConsumed)
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at <= ?`, toMillis(now)))
}

func scanAuthorizationCode(row scanner) (domain.AuthorizationCode, error) {
	var (
		c                    domain.AuthorizationCode
		scope                string
		nonce                sql.NullString
		createdAt, expiresAt int64
		usedAt               sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.CodeHash, &c.ClientID, &c.UserID, &c.RedirectURI, &scope, &c.CodeChallenge,
		&c.CodeChallengeMethod, &nonce, &createdAt, &expiresAt, &usedAt)
	if err != nil {
		return domain.AuthorizationCode{}, err
	}
	c.Scopes = splitAndFilter(scope)
	c.Nonce = mapNullString(nonce)
	c.CreatedAt = fromMillis(createdAt)
	c.ExpiresAt = fromMillis(expiresAt)
	c.UsedAt = mapNullTimePtr(usedAt)
	return c, nil
}
