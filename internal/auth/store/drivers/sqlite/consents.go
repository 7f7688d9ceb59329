package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

type consentsRepo struct {
	db dbtx
}

func (r *consentsRepo) GetConsent(ctx context.Context, userID, clientID string) (domain.Consent, error) {
	var (
		c           domain.Consent
		scope       string
		consentedAt int64
		revokedAt   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, client_id, scope, consented_at, revoked_at
		FROM consents WHERE user_id = ? AND client_id = ?`, userID, clientID).
		Scan(&c.UserID, &c.ClientID, &scope, &consentedAt, &revokedAt)
	if err != nil {
		return domain.Consent{}, mapNotFound(err)
	}
	c.Scopes = splitAndFilter(scope)
	c.ConsentedAt = fromMillis(consentedAt)
	c.RevokedAt = mapNullTimePtr(revokedAt)
	return c, nil
}

func (r *consentsRepo) UpsertConsent(ctx context.Context, c domain.Consent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO consents (user_id, client_id, scope, consented_at, revoked_at)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT (user_id, client_id) DO UPDATE SET
			scope = excluded.scope,
			consented_at = excluded.consented_at,
			revoked_at = NULL`,
		c.UserID, c.ClientID, joinScopes(c.Scopes), toMillis(c.ConsentedAt),
	)
	return err
}

func (r *consentsRepo) RevokeConsent(ctx context.Context, userID, clientID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE consents SET revoked_at = COALESCE(revoked_at, ?)
		WHERE user_id = ? AND client_id = ?`,
		toMillis(now), userID, clientID,
	)
	return requireRow(res, err, store.ErrNotFound)
}
