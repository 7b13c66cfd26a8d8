package auth

import "errors"

// Sentinel errors returned by the engine. Credential failures are collapsed
// into ErrInvalidCredentials so responses never reveal which part of a login
// attempt was wrong.
var (
	// ErrInvalidCredentials covers unknown identifier, wrong password,
	// wrong or missing TOTP code, and invalid, expired or already-rotated
	// refresh tokens.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTwoFactorRequired is returned when an operation needs a confirmed
	// TOTP enrollment that the account does not have yet. It is the one
	// deliberate exception to the generic failure above: the client needs
	// to know to start enrollment.
	ErrTwoFactorRequired = errors.New("two-factor enrollment required")

	// ErrTwoFactorAlreadyEnabled rejects a password-proof enrollment for an
	// account that already has a confirmed authenticator. Replacing an
	// authenticator requires a valid access token.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")

	// ErrNotAdmin guards the backup export.
	ErrNotAdmin = errors.New("admin privileges required")

	// ErrDuplicateUser deliberately does not say whether the username or
	// the email collided.
	ErrDuplicateUser = errors.New("username or email already taken")

	// ErrUserNotFound and ErrSessionNotFound are store-level sentinels. The
	// engine translates them before they reach a caller.
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")

	// ErrRateLimited is returned when the throttle window for an identifier
	// is exhausted.
	ErrRateLimited = errors.New("too many attempts")
)
