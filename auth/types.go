package auth

import (
	"context"
	"time"
)

// User is an account row. PasswordHash and TOTPSecret never leave the
// engine; Sanitize strips them before a user is handed to a caller.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TOTPSecret   string    `json:"-"`
	TOTPEnabled  bool      `json:"totpEnabled"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitize returns a copy safe to serialize to a client.
func (u *User) Sanitize() *User {
	c := *u
	c.PasswordHash = ""
	c.TOTPSecret = ""
	return &c
}

// Session is one device's refresh lease. A user holds one session per
// logged-in device; the refresh token stored here is single-use and is
// swapped on every rotation.
type Session struct {
	ID           string
	UserID       string
	DeviceID     string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is the sanitized user plus a fresh token pair.
type LoginResult struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// UserStore persists accounts.
type UserStore interface {
	// Create persists u and decides the admin flag atomically: the first
	// account ever created becomes the admin, all later ones do not, even
	// under concurrent registration. Returns ErrDuplicateUser when the
	// username or email is taken, and the stored row otherwise.
	Create(ctx context.Context, u *User) (*User, error)

	// ByIdentifier finds a user by username (exact match) or email
	// (case-insensitive), ErrUserNotFound when neither matches.
	ByIdentifier(ctx context.Context, identifier string) (*User, error)

	// ByID finds a user by id, ErrUserNotFound when absent.
	ByID(ctx context.Context, id string) (*User, error)

	// SetTOTPSecret stores a pending authenticator secret and clears the
	// enabled flag.
	SetTOTPSecret(ctx context.Context, userID, secret string) error

	// EnableTOTP marks the stored secret as confirmed.
	EnableTOTP(ctx context.Context, userID string) error
}

// SessionLedger persists refresh sessions.
type SessionLedger interface {
	Create(ctx context.Context, s *Session) error

	// FindActive is a point lookup by (refreshToken, deviceID) restricted
	// to rows that expire after now. ErrSessionNotFound otherwise.
	FindActive(ctx context.Context, refreshToken, deviceID string, now time.Time) (*Session, error)

	// Rotate swaps the stored refresh token, guarded by the old value:
	// the update only applies while the row still carries oldToken, so of
	// two concurrent rotations exactly one observes swapped=true.
	Rotate(ctx context.Context, sessionID, oldToken, newToken string, expiresAt time.Time) (swapped bool, err error)

	// Delete removes the session, silently succeeding when it is already
	// gone.
	Delete(ctx context.Context, refreshToken, deviceID string) error
}

// Limiter throttles guessable operations per identifier. A nil limiter on
// the engine disables throttling entirely.
type Limiter interface {
	// Allow records an attempt and reports whether it is within the
	// window.
	Allow(ctx context.Context, scope, key string) (bool, error)

	// Reset clears the counter after a successful attempt.
	Reset(ctx context.Context, scope, key string) error
}
