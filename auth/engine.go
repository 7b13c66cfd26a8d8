// Package auth is the authentication and session core: registration with
// admin bootstrap, mandatory TOTP two-factor enrollment, password+TOTP
// login issuing an access/refresh token pair, single-use refresh rotation
// against a per-device session ledger, and the admin-only secrets backup
// export.
//
// The engine owns policy and orchestration only. Durable state lives
// behind the UserStore and SessionLedger interfaces, and the HTTP layer
// maps the package's sentinel errors onto status codes.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlenahan/homebase/auth/password"
	"github.com/mlenahan/homebase/auth/secrets"
	"github.com/mlenahan/homebase/auth/token"
	"github.com/mlenahan/homebase/auth/totp"
)

// Throttle scopes. Login and the password-reproof enrollment endpoints
// count separately so a noisy login loop cannot lock out enrollment.
const (
	scopeLogin   = "login"
	scopeReproof = "reproof"
)

// Config wires the engine's collaborators. Users, Sessions and Secrets are
// required; everything else has working defaults.
type Config struct {
	Users    UserStore
	Sessions SessionLedger
	Secrets  *secrets.Store

	Password password.Config
	TOTP     totp.Config
	Tokens   token.Config

	// Limiter throttles login and password-reproof attempts. Nil disables
	// throttling.
	Limiter Limiter

	Logger zerolog.Logger
}

// Engine orchestrates the authentication flows.
type Engine struct {
	users    UserStore
	sessions SessionLedger
	secrets  *secrets.Store

	policy *password.Policy
	hasher *password.Hasher
	totp   *totp.Engine
	tokens *token.Manager

	limiter Limiter
	log     zerolog.Logger

	now func() time.Time
}

// New builds an Engine. The token signing keys come from the secrets
// bundle unless the token config already carries its own.
func New(cfg Config) (*Engine, error) {
	if cfg.Users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("auth: session ledger is required")
	}
	if cfg.Secrets == nil {
		return nil, errors.New("auth: secret store is required")
	}

	if cfg.Tokens.AccessKey == nil {
		cfg.Tokens.AccessKey = cfg.Secrets.Bundle().AccessTokenKey
	}
	if cfg.Tokens.RefreshKey == nil {
		cfg.Tokens.RefreshKey = cfg.Secrets.Bundle().RefreshTokenKey
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(cfg.Tokens)
	if err != nil {
		return nil, err
	}

	return &Engine{
		users:    cfg.Users,
		sessions: cfg.Sessions,
		secrets:  cfg.Secrets,
		policy:   password.NewPolicy(cfg.Password),
		hasher:   hasher,
		totp:     totp.New(cfg.TOTP),
		tokens:   tokens,
		limiter:  cfg.Limiter,
		log:      cfg.Logger,
		now:      time.Now,
	}, nil
}

// EncryptionKey exposes the symmetric key for the mail-config encryption
// collaborator. The engine itself never encrypts anything with it.
func (e *Engine) EncryptionKey() []byte {
	return e.secrets.EncryptionKey()
}

// allow consults the limiter, failing open when the limiter backend is
// unreachable: losing Redis should not lock every user out.
func (e *Engine) allow(ctx context.Context, scope, key string) error {
	if e.limiter == nil {
		return nil
	}
	ok, err := e.limiter.Allow(ctx, scope, key)
	if err != nil {
		e.log.Warn().Err(err).Str("scope", scope).Msg("limiter unavailable, allowing attempt")
		return nil
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

// resetLimit clears the attempt counter after a success.
func (e *Engine) resetLimit(ctx context.Context, scope, key string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.Reset(ctx, scope, key); err != nil {
		e.log.Warn().Err(err).Str("scope", scope).Msg("limiter reset failed")
	}
}
