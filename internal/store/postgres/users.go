package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mlenahan/homebase/auth"
	"github.com/mlenahan/homebase/internal/store"
)

// UserRepository implements auth.UserStore.
type UserRepository struct {
	db store.DBTX
}

func NewUserRepository(db store.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// The admin flag is computed inside the insert, so two concurrent first
// registrations both ask for it and the partial unique index arbitrates.
const createUserQuery = `
INSERT INTO users (id, username, email, password_hash, is_admin)
VALUES ($1, $2, $3, $4, $5 AND NOT EXISTS (SELECT 1 FROM users WHERE is_admin))
RETURNING is_admin, created_at, updated_at`

// Create inserts the user, electing it admin when no admin row exists yet.
// Losing the admin-index race retries the insert as a regular user; any
// other unique violation is reported as auth.ErrDuplicateUser.
func (r *UserRepository) Create(ctx context.Context, u *auth.User) (*auth.User, error) {
	created := *u
	for _, wantAdmin := range []bool{true, false} {
		err := r.db.QueryRowContext(ctx, createUserQuery,
			u.ID, u.Username, u.Email, u.PasswordHash, wantAdmin,
		).Scan(&created.IsAdmin, &created.CreatedAt, &created.UpdatedAt)
		if err == nil {
			return &created, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			if pgErr.ConstraintName == adminIndexName {
				continue
			}
			return nil, auth.ErrDuplicateUser
		}
		return nil, fmt.Errorf("postgres: creating user: %w", err)
	}
	return nil, errors.New("postgres: admin bootstrap retry conflicted again")
}

const userColumns = `id, username, email, password_hash, totp_secret, totp_enabled, is_admin, created_at, updated_at`

// ByIdentifier resolves a username or email to a user. Usernames match
// exactly; emails are stored lowercased, so the email side of the lookup
// folds case to accept whatever casing the caller typed.
func (r *UserRepository) ByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = lower($1)`, identifier)
	return scanUser(row)
}

// ByID resolves a user id to a user.
func (r *UserRepository) ByID(ctx context.Context, id string) (*auth.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// SetTOTPSecret stores a pending authenticator secret and clears the
// confirmed flag in the same statement.
func (r *UserRepository) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	return r.updateUser(ctx,
		`UPDATE users SET totp_secret = $2, totp_enabled = FALSE, updated_at = now() WHERE id = $1`,
		userID, secret)
}

// EnableTOTP marks the stored secret as confirmed.
func (r *UserRepository) EnableTOTP(ctx context.Context, userID string) error {
	return r.updateUser(ctx,
		`UPDATE users SET totp_enabled = TRUE, updated_at = now() WHERE id = $1`,
		userID)
}

func (r *UserRepository) updateUser(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: updating user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: updating user: %w", err)
	}
	if affected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.TOTPSecret, &u.TOTPEnabled, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning user: %w", err)
	}
	return &u, nil
}
