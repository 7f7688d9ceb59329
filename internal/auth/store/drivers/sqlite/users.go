package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, name, picture, email_verified, password_hash, mfa_secret, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := u.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Picture, u.EmailVerified, u.PasswordHash,
		mapOptionalString(u.MFASecret), toMillis(now), toMillis(now),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateMFASecret(ctx context.Context, userID string, secret *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET mfa_secret = ?, updated_at = ? WHERE id = ?`,
		mapOptionalString(secret), toMillis(time.Now()), userID,
	)
	return requireRow(res, err, store.ErrNotFound)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func scanUser(row scanner) (domain.User, error) {
	var (
		u                    domain.User
		mfaSecret            sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.EmailVerified, &u.PasswordHash,
		&mfaSecret, &createdAt, &updatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.MFASecret = mapNullStringPtr(mfaSecret)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}
