package auth

import "context"

// Refresh trades a refresh token presented by deviceID for a fresh token
// pair. The token must verify cryptographically AND still be the one the
// session ledger holds for that device; rotation swaps the stored token
// under a compare-and-set, so a replayed or concurrently-used token loses
// and fails. Every failure is the same ErrInvalidCredentials.
func (e *Engine) Refresh(ctx context.Context, refreshToken, deviceID string) (*TokenPair, error) {
	userID, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := e.sessions.FindActive(ctx, refreshToken, deviceID, e.now())
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if session.UserID != userID {
		return nil, ErrInvalidCredentials
	}

	access, err := e.tokens.IssueAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}

	swapped, err := e.sessions.Rotate(ctx, session.ID, refreshToken, refresh, e.now().Add(e.tokens.RefreshTTL()))
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Someone else rotated this token first. The pair issued above is
		// discarded unreturned; only the winner's pair is live.
		return nil, ErrInvalidCredentials
	}

	e.log.Debug().Str("user_id", userID).Str("device_id", deviceID).Msg("session rotated")
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout ends the session holding refreshToken for deviceID. Logging out a
// session that is already gone is not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken, deviceID string) error {
	return e.sessions.Delete(ctx, refreshToken, deviceID)
}

// VerifyAccess resolves a bearer access token to a user id. The request
// gate middleware calls this on every protected request.
func (e *Engine) VerifyAccess(accessToken string) (string, error) {
	userID, err := e.tokens.VerifyAccess(accessToken)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	return userID, nil
}
