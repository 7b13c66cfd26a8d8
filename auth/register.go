package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Register creates an account. The password is checked against the
// strength policy before anything is persisted, so a rejected candidate
// leaves no trace. The store decides the admin flag: the first account ever
// created becomes the admin, which bootstraps a fresh deployment without a
// setup step.
//
// The returned user is sanitized. The account cannot log in until
// two-factor enrollment is confirmed.
func (e *Engine) Register(ctx context.Context, username, email, pass string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if err := e.policy.Validate(pass); err != nil {
		return nil, err
	}
	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	created, err := e.users.Create(ctx, &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Str("user_id", created.ID).Bool("admin", created.IsAdmin).Msg("user registered")
	return created.Sanitize(), nil
}
