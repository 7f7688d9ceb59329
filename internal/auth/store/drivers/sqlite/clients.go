package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
)

type clientsRepo struct {
	db dbtx
}

const clientColumns = `id, name, client_type, secret_hash, allowed_scopes, auto_registered, created_at, updated_at`

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM oauth_clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}

	c.RedirectURIs, err = r.redirectURIs(ctx, c.ID)
	if err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM oauth_clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Redirect URIs are loaded after the cursor is closed so the single
	// in-memory connection is free again.
	for i := range out {
		if out[i].RedirectURIs, err = r.redirectURIs(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	now := c.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), mapStringNull(c.SecretHash), joinScopes(c.AllowedScopes),
		c.AutoRegistered, toMillis(now), toMillis(now),
	)
	if err != nil {
		return mapConstraint(err)
	}

	for _, uri := range c.RedirectURIs {
		if err := r.AddRedirectURI(ctx, c.ID, uri, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *clientsRepo) AddRedirectURI(ctx context.Context, clientID, uri string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_client_redirect_uris (client_id, redirect_uri, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (client_id, redirect_uri) DO NOTHING`,
		clientID, uri, toMillis(now),
	)
	return err
}

func (r *clientsRepo) redirectURIs(ctx context.Context, clientID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT redirect_uri FROM oauth_client_redirect_uris
		WHERE client_id = ? ORDER BY created_at, redirect_uri`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}

func scanClient(row scanner) (domain.Client, error) {
	var (
		c                    domain.Client
		clientType           string
		secretHash           sql.NullString
		scopes               string
		createdAt, updatedAt int64
	)
	err := row.Scan(&c.ID, &c.Name, &clientType, &secretHash, &scopes, &c.AutoRegistered, &createdAt, &updatedAt)
	if err != nil {
		return domain.Client{}, err
	}
	c.Type = domain.ClientType(clientType)
	c.SecretHash = mapNullString(secretHash)
	c.AllowedScopes = splitAndFilter(scopes)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}
