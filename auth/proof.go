package auth

import "context"

// AuthProof is how a caller demonstrates control of an account to the
// two-factor enrollment operations. Two proofs exist: a fresh password for
// accounts that cannot log in yet because no authenticator is confirmed,
// and a bearer access token for accounts replacing a working authenticator.
// Both resolve to the same verified user.
type AuthProof interface {
	isProof()
}

// PasswordProof re-proves the password out of band of a session. It is the
// pre-auth path: usable only while the account has no confirmed
// authenticator.
type PasswordProof struct {
	Identifier string
	Password   string
}

func (PasswordProof) isProof() {}

// TokenProof is the post-auth path: a valid access token authorizes
// replacing the current authenticator.
type TokenProof struct {
	AccessToken string
}

func (TokenProof) isProof() {}

// resolveProof turns a proof into the verified user. forEnroll marks the
// initial-enrollment path, where a password proof against an account with a
// confirmed authenticator is refused: once 2FA works, only a full login may
// change it.
//
// Password proofs are throttled per identifier; failures collapse into
// ErrInvalidCredentials. The throttle counter is NOT reset here: a correct
// password followed by a wrong confirmation code is still a failed attempt,
// so the reset waits until the whole operation succeeds.
func (e *Engine) resolveProof(ctx context.Context, proof AuthProof, forEnroll bool) (*User, error) {
	switch p := proof.(type) {
	case PasswordProof:
		if err := e.allow(ctx, scopeReproof, p.Identifier); err != nil {
			return nil, err
		}
		user, err := e.users.ByIdentifier(ctx, p.Identifier)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		if !e.hasher.Verify(p.Password, user.PasswordHash) {
			return nil, ErrInvalidCredentials
		}
		if forEnroll && user.TOTPEnabled {
			return nil, ErrTwoFactorAlreadyEnabled
		}
		return user, nil

	case TokenProof:
		userID, err := e.tokens.VerifyAccess(p.AccessToken)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		user, err := e.users.ByID(ctx, userID)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		return user, nil

	default:
		return nil, ErrInvalidCredentials
	}
}

// reproofIdentifier reports the throttle key of a password proof, false for
// proofs that are not throttled.
func reproofIdentifier(proof AuthProof) (string, bool) {
	p, ok := proof.(PasswordProof)
	if !ok {
		return "", false
	}
	return p.Identifier, true
}
