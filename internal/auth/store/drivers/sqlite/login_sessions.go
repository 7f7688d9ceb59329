package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

type loginSessionsRepo struct {
	db dbtx
}

func (r *loginSessionsRepo) CreateLoginSession(ctx context.Context, s domain.LoginSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_sessions (id_hash, user_id, amr, created_at, expires_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, NULL)`,
		s.IDHash, s.UserID, joinScopes(s.AMR), toMillis(s.CreatedAt), toMillis(s.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *loginSessionsRepo) GetLoginSession(ctx context.Context, idHash string) (domain.LoginSession, error) {
	var (
		s                    domain.LoginSession
		amr                  string
		createdAt, expiresAt int64
		revokedAt            sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id_hash, user_id, amr, created_at, expires_at, revoked_at
		FROM login_sessions WHERE id_hash = ?`, idHash).
		Scan(&s.IDHash, &s.UserID, &amr, &createdAt, &expiresAt, &revokedAt)
	if err != nil {
		return domain.LoginSession{}, mapNotFound(err)
	}
	s.AMR = splitAndFilter(amr)
	s.CreatedAt = fromMillis(createdAt)
	s.ExpiresAt = fromMillis(expiresAt)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}

func (r *loginSessionsRepo) RevokeLoginSession(ctx context.Context, idHash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE login_sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id_hash = ?`,
		toMillis(now), idHash,
	)
	return requireRow(res, err, store.ErrNotFound)
}

func (r *loginSessionsRepo) DeleteExpiredLoginSessions(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM login_sessions WHERE expires_at <= ?`, toMillis(now)))
}
