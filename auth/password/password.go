// Package password implements credential hashing and password strength
// policy for the homebase auth core.
//
// Hashing uses bcrypt with a configurable work factor. The strength policy
// is deliberately strict: homebase protects a person's entire calendar,
// contact and mail history behind a single password, so the minimum length
// defaults to 24 characters.
package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Symbols is the punctuation set accepted by the strength policy.
// It matches the ASCII punctuation range.
const Symbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// DefaultMinLength is the minimum password length enforced when the
// operator does not override it.
const DefaultMinLength = 24

// MaxLength is the longest accepted password in bytes. bcrypt only hashes
// the first 72 bytes, so anything longer is refused by the policy rather
// than silently truncated or rejected deep inside the hasher.
const MaxLength = 72

// DefaultCost is the bcrypt work factor used when the operator does not
// override it.
const DefaultCost = 12

// Config holds the operator-tunable credential parameters.
type Config struct {
	MinLength int
	Cost      int
}

// PolicyError reports why a password failed the strength policy. Its
// message is safe to surface verbatim to the client.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// Policy validates candidate passwords against the strength rules.
type Policy struct {
	minLength int
}

// NewPolicy returns a Policy with the configured minimum length, falling
// back to DefaultMinLength when unset.
func NewPolicy(cfg Config) *Policy {
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Policy{minLength: minLength}
}

// Validate checks the strength rules in order: length bounds, digit,
// letter, symbol. The first failing rule is reported; passing all returns
// nil.
func (p *Policy) Validate(password string) error {
	if len(password) < p.minLength {
		return &PolicyError{Reason: fmt.Sprintf("password must be at least %d characters long", p.minLength)}
	}
	if len(password) > MaxLength {
		return &PolicyError{Reason: fmt.Sprintf("password must be at most %d bytes long", MaxLength)}
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		return &PolicyError{Reason: "password must contain at least one digit"}
	}
	if !strings.ContainsFunc(password, unicode.IsLetter) {
		return &PolicyError{Reason: "password must contain at least one letter"}
	}
	if !strings.ContainsAny(password, Symbols) {
		return &PolicyError{Reason: "password must contain at least one symbol"}
	}
	return nil
}

// Hasher hashes and verifies passwords with bcrypt at a fixed work factor.
type Hasher struct {
	cost int
}

// NewHasher validates the work factor and returns a Hasher. A zero cost
// selects DefaultCost.
func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of password. The salt is generated by the
// primitive and embedded in the returned hash.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash. Comparison is
// constant-time up to bcrypt's own guarantees.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
