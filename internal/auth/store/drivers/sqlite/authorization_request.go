package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
)

type authorizationRequestsRepo struct {
	db dbtx
}

const authorizationRequestColumns = `id_hash, client_id, redirect_uri, scope, state, code_challenge,
	code_challenge_method, nonce, created_at, expires_at, consumed_at`

func (r *authorizationRequestsRepo) CreateAuthorizationRequest(ctx context.Context, ar domain.AuthorizationRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_requests (`+authorizationRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		ar.IDHash, ar.ClientID, ar.RedirectURI, joinScopes(ar.Scopes), ar.State, ar.CodeChallenge,
		ar.CodeChallengeMethod, mapStringNull(ar.Nonce), toMillis(ar.CreatedAt), toMillis(ar.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *authorizationRequestsRepo) GetAuthorizationRequest(ctx context.Context, idHash string) (domain.AuthorizationRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+authorizationRequestColumns+` FROM authorization_requests WHERE id_hash = ?`, idHash)
	ar, err := scanAuthorizationRequest(row)
	if err != nil {
		return domain.AuthorizationRequest{}, mapNotFound(err)
	}
	return ar, nil
}

func (r *authorizationRequestsRepo) ConsumeAuthorizationRequest(ctx context.Context, idHash string, now time.Time) (domain.AuthorizationRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE authorization_requests SET consumed_at = ?
		WHERE id_hash = ? AND consumed_at IS NULL AND expires_at > ?
		RETURNING `+authorizationRequestColumns,
		toMillis(now), idHash, toMillis(now),
	)
	ar, err := scanAuthorizationRequest(row)
	if err != nil {
		return domain.AuthorizationRequest{}, mapConsumed(err)
	}
	return ar, nil
}

func (r *authorizationRequestsRepo) DeleteExpiredAuthorizationRequests(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM authorization_requests WHERE expires_at <= ?`, toMillis(now)))
}

func scanAuthorizationRequest(row scanner) (domain.AuthorizationRequest, error) {
	var (
		ar                   domain.AuthorizationRequest
		scope                string
		nonce                sql.NullString
		createdAt, expiresAt int64
		consumedAt           sql.NullInt64
	)
	err := row.Scan(&ar.IDHash, &ar.ClientID, &ar.RedirectURI, &scope, &ar.State, &ar.CodeChallenge,
		&ar.CodeChallengeMethod, &nonce, &createdAt, &expiresAt, &consumedAt)
	if err != nil {
		return domain.AuthorizationRequest{}, err
	}
	ar.Scopes = splitAndFilter(scope)
	ar.Nonce = mapNullString(nonce)
	ar.CreatedAt = fromMillis(createdAt)
	ar.ExpiresAt = fromMillis(expiresAt)
	ar.ConsumedAt = mapNullTimePtr(consumedAt)
	return ar, nil
}
