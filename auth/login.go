package auth

import (
	"context"

	"github.com/google/uuid"
)

// Login authenticates identifier (username or email) with the password and
// a current TOTP code, and opens a session for deviceID.
//
// Unknown identifier, wrong password and wrong code all return the same
// ErrInvalidCredentials. The one distinguishable failure is an account that
// has no confirmed authenticator yet: ErrTwoFactorRequired, so the client
// can route the user into enrollment instead of a retry loop.
func (e *Engine) Login(ctx context.Context, identifier, pass, code, deviceID string) (*LoginResult, error) {
	if err := e.allow(ctx, scopeLogin, identifier); err != nil {
		return nil, err
	}

	user, err := e.users.ByIdentifier(ctx, identifier)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !e.hasher.Verify(pass, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.TOTPEnabled {
		return nil, ErrTwoFactorRequired
	}
	if !e.totp.Verify(user.TOTPSecret, code, e.now()) {
		return nil, ErrInvalidCredentials
	}

	access, err := e.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	err = e.sessions.Create(ctx, &Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		DeviceID:     deviceID,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(e.tokens.RefreshTTL()),
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	e.resetLimit(ctx, scopeLogin, identifier)
	e.log.Info().Str("user_id", user.ID).Str("device_id", deviceID).Msg("login succeeded")

	return &LoginResult{
		User:   user.Sanitize(),
		Tokens: TokenPair{AccessToken: access, RefreshToken: refresh},
	}, nil
}
