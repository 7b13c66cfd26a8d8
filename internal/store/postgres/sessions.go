package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mlenahan/homebase/auth"
	"github.com/mlenahan/homebase/internal/store"
)

// SessionRepository implements auth.SessionLedger.
type SessionRepository struct {
	db store.DBTX
}

func NewSessionRepository(db store.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *auth.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, device_id, refresh_token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.DeviceID, s.RefreshToken, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: creating session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindActive(ctx context.Context, refreshToken, deviceID string, now time.Time) (*auth.Session, error) {
	var s auth.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, device_id, refresh_token, expires_at, created_at
		 FROM sessions WHERE refresh_token = $1 AND device_id = $2 AND expires_at > $3`,
		refreshToken, deviceID, now,
	).Scan(&s.ID, &s.UserID, &s.DeviceID, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: finding session: %w", err)
	}
	return &s, nil
}

// Rotate swaps the refresh token under a compare-and-set: the update is
// guarded by the old token value, so of two concurrent rotations on the
// same session exactly one affects a row.
func (r *SessionRepository) Rotate(ctx context.Context, sessionID, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_token = $3, expires_at = $4
		 WHERE id = $1 AND refresh_token = $2`,
		sessionID, oldToken, newToken, expiresAt)
	if err != nil {
		return false, fmt.Errorf("postgres: rotating session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: rotating session: %w", err)
	}
	return affected == 1, nil
}

// Delete removes the session. Deleting an absent session is fine.
func (r *SessionRepository) Delete(ctx context.Context, refreshToken, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE refresh_token = $1 AND device_id = $2`,
		refreshToken, deviceID)
	if err != nil {
		return fmt.Errorf("postgres: deleting session: %w", err)
	}
	return nil
}

// PruneExpired removes sessions whose expiry has passed and reports how
// many were dropped. Expired rows are already invisible to FindActive;
// pruning just keeps the table small.
func (r *SessionRepository) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: pruning sessions: %w", err)
	}
	return result.RowsAffected()
}
