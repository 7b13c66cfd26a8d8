package auth

import (
	"context"

	"github.com/mlenahan/homebase/auth/totp"
)

// EnrollTwoFactor starts (or restarts) authenticator enrollment for the
// account behind proof. A fresh secret is generated and stored unconfirmed,
// replacing any pending one; the account's login ability does not change
// until ConfirmTwoFactor succeeds.
//
// With a password proof, an account that already has a confirmed
// authenticator is refused (ErrTwoFactorAlreadyEnabled); a token proof may
// always re-enroll, which revokes the old authenticator once the new one is
// confirmed.
func (e *Engine) EnrollTwoFactor(ctx context.Context, proof AuthProof) (*totp.Enrollment, error) {
	user, err := e.resolveProof(ctx, proof, true)
	if err != nil {
		return nil, err
	}

	enrollment, err := e.totp.Enroll(user.Username)
	if err != nil {
		return nil, err
	}
	if err := e.users.SetTOTPSecret(ctx, user.ID, enrollment.Secret); err != nil {
		return nil, err
	}

	if id, ok := reproofIdentifier(proof); ok {
		e.resetLimit(ctx, scopeReproof, id)
	}
	e.log.Info().Str("user_id", user.ID).Msg("two-factor enrollment started")
	return enrollment, nil
}

// ConfirmTwoFactor proves the authenticator was provisioned correctly: the
// submitted code must match the pending secret, at which point the secret
// becomes the account's confirmed authenticator. Repeating the call with a
// still-valid code is a no-op; a wrong code mutates nothing.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, proof AuthProof, code string) error {
	user, err := e.resolveProof(ctx, proof, false)
	if err != nil {
		return err
	}

	if user.TOTPSecret == "" {
		return ErrTwoFactorRequired
	}
	if !e.totp.Verify(user.TOTPSecret, code, e.now()) {
		return ErrInvalidCredentials
	}
	if err := e.users.EnableTOTP(ctx, user.ID); err != nil {
		return err
	}

	if id, ok := reproofIdentifier(proof); ok {
		e.resetLimit(ctx, scopeReproof, id)
	}
	e.log.Info().Str("user_id", user.ID).Msg("two-factor enrollment confirmed")
	return nil
}
