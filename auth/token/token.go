// Package token issues and verifies the two JWT families used by the
// homebase auth core: short-lived access tokens and long-lived refresh
// tokens, signed with independent HMAC keys from the secret store.
//
// A refresh token's own exp claim and the session ledger row expiry are
// deliberately independent checks; verifying here says nothing about
// whether the ledger still carries the token.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL is the access token lifetime.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the refresh token lifetime. The session ledger
	// row created at login carries the same value independently.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	minKeyBytes = 32
)

// ErrInvalidToken is returned for every verification failure: malformed
// token, wrong signature, wrong family, or expiry. Callers must not
// distinguish these cases to the client.
var ErrInvalidToken = errors.New("invalid token")

// Config holds the signing keys and lifetimes for both token families.
type Config struct {
	AccessKey  []byte
	RefreshKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// Claims is the payload carried by both token families.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access and refresh tokens.
type Manager struct {
	config Config
}

// NewManager validates key material and returns a Manager. Both keys must
// be present, HMAC-grade, and distinct from each other.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessKey) < minKeyBytes {
		return nil, errors.New("access signing key too short")
	}
	if len(cfg.RefreshKey) < minKeyBytes {
		return nil, errors.New("refresh signing key too short")
	}
	if string(cfg.AccessKey) == string(cfg.RefreshKey) {
		return nil, errors.New("access and refresh signing keys must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &Manager{config: cfg}, nil
}

// RefreshTTL is the configured refresh token lifetime; the orchestrator
// uses it for the matching ledger row expiry.
func (m *Manager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

// IssueAccess signs an access token for userID.
func (m *Manager) IssueAccess(userID string) (string, error) {
	return m.issue(userID, m.config.AccessKey, m.config.AccessTTL)
}

// IssueRefresh signs a refresh token for userID.
func (m *Manager) IssueRefresh(userID string) (string, error) {
	return m.issue(userID, m.config.RefreshKey, m.config.RefreshTTL)
}

// VerifyAccess returns the user id carried by a valid access token, or
// ErrInvalidToken.
func (m *Manager) VerifyAccess(tokenStr string) (string, error) {
	return m.verify(tokenStr, m.config.AccessKey)
}

// VerifyRefresh returns the user id carried by a valid refresh token, or
// ErrInvalidToken.
func (m *Manager) VerifyRefresh(tokenStr string) (string, error) {
	return m.verify(tokenStr, m.config.RefreshKey)
}

func (m *Manager) issue(userID string, key []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes two tokens minted for the same user within one
			// clock second distinct; refresh rotation depends on that.
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func (m *Manager) verify(tokenStr string, key []byte) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
