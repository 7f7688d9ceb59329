package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
)

type oauthStatesRepo struct {
	db dbtx
}

const oauthStateColumns = `state_hash, platform, user_id, code_verifier_ct, redirect_after, created_at, expires_at, used_at`

func (r *oauthStatesRepo) CreateOAuthState(ctx context.Context, s domain.OAuthState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_states (`+oauthStateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		s.StateHash, string(s.Platform), s.UserID, s.CodeVerifierCT, s.RedirectAfter,
		toMillis(s.CreatedAt), toMillis(s.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *oauthStatesRepo) ConsumeOAuthState(ctx context.Context, stateHash string, now time.Time) (domain.OAuthState, error) {
	var (
		s                    domain.OAuthState
		platform             string
		createdAt, expiresAt int64
		usedAt               sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		UPDATE oauth_states SET used_at = ?
		WHERE state_hash = ? AND used_at IS NULL AND expires_at > ?
		RETURNING `+oauthStateColumns,
		toMillis(now), stateHash, toMillis(now),
	).Scan(&s.StateHash, &platform, &s.UserID, &s.CodeVerifierCT, &s.RedirectAfter, &createdAt, &expiresAt, &usedAt)
	if err != nil {
		return domain.OAuthState{}, mapConsumed(err)
	}
	s.Platform = domain.Platform(platform)
	s.CreatedAt = fromMillis(createdAt)
	s.ExpiresAt = fromMillis(expiresAt)
	s.UsedAt = mapNullTimePtr(usedAt)
	return s, nil
}

func (r *oauthStatesRepo) DeleteExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= ?`, toMillis(now)))
}
