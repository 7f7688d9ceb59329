package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

type platformConnectionsRepo struct {
	db dbtx
}

const platformConnectionColumns = `id, user_id, platform, access_token_ct, refresh_token_ct, expires_at,
	scope, active, created_at, updated_at`

func (r *platformConnectionsRepo) GetPlatformConnection(ctx context.Context, userID string, platform domain.Platform) (domain.PlatformConnection, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+platformConnectionColumns+` FROM platform_connections
		WHERE user_id = ? AND platform = ?`, userID, string(platform))
	c, err := scanPlatformConnection(row)
	if err != nil {
		return domain.PlatformConnection{}, mapNotFound(err)
	}
	return c, nil
}

func (r *platformConnectionsRepo) UpsertPlatformConnection(ctx context.Context, c domain.PlatformConnection) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO platform_connections (`+platformConnectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token_ct = excluded.access_token_ct,
			refresh_token_ct = excluded.refresh_token_ct,
			expires_at = excluded.expires_at,
			scope = excluded.scope,
			active = 1,
			updated_at = excluded.updated_at`,
		c.ID, c.UserID, string(c.Platform), c.AccessTokenCT, mapStringNull(c.RefreshTokenCT),
		toMillis(c.ExpiresAt), joinScopes(c.Scopes), toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	)
	return err
}

func (r *platformConnectionsRepo) UpdatePlatformTokens(ctx context.Context, id, accessCT, refreshCT string, expiresAt, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE platform_connections SET
			access_token_ct = ?,
			refresh_token_ct = COALESCE(?, refresh_token_ct),
			expires_at = ?,
			updated_at = ?
		WHERE id = ? AND active = 1`,
		accessCT, mapStringNull(refreshCT), toMillis(expiresAt), toMillis(now), id,
	)
	return requireRow(res, err, store.ErrNotFound)
}

func (r *platformConnectionsRepo) DeactivatePlatformConnection(ctx context.Context, userID string, platform domain.Platform, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE platform_connections SET
			active = 0,
			access_token_ct = '',
			refresh_token_ct = NULL,
			updated_at = ?
		WHERE user_id = ? AND platform = ? AND active = 1`,
		toMillis(now), userID, string(platform),
	)
	return requireRow(res, err, store.ErrNotFound)
}

func (r *platformConnectionsRepo) ListPlatformConnections(ctx context.Context, userID string) ([]domain.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+platformConnectionColumns+` FROM platform_connections
		WHERE user_id = ? ORDER BY platform`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PlatformConnection
	for rows.Next() {
		c, err := scanPlatformConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanPlatformConnection(row scanner) (domain.PlatformConnection, error) {
	var (
		c                               domain.PlatformConnection
		platform, scope                 string
		refreshCT                       sql.NullString
		expiresAt, createdAt, updatedAt int64
	)
	err := row.Scan(&c.ID, &c.UserID, &platform, &c.AccessTokenCT, &refreshCT, &expiresAt,
		&scope, &c.Active, &createdAt, &updatedAt)
	if err != nil {
		return domain.PlatformConnection{}, err
	}
	c.Platform = domain.Platform(platform)
	c.RefreshTokenCT = mapNullString(refreshCT)
	c.ExpiresAt = fromMillis(expiresAt)
	c.Scopes = splitAndFilter(scope)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}
