package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	pqotp "github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"

	"github.com/mlenahan/homebase/auth/password"
	"github.com/mlenahan/homebase/auth/secrets"
)

// fakeUserStore is an in-memory UserStore. Create mirrors the database
// guarantee: uniqueness checks and the first-admin decision happen under
// one lock, so concurrent registrations still elect exactly one admin.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*User{}}
}

func (s *fakeUserStore) Create(ctx context.Context, u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasAdmin := false
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, ErrDuplicateUser
		}
		if existing.IsAdmin {
			hasAdmin = true
		}
	}

	c := *u
	c.IsAdmin = !hasAdmin
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.users[c.ID] = &c

	out := c
	return &out, nil
}

func (s *fakeUserStore) ByIdentifier(ctx context.Context, identifier string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == identifier || u.Email == strings.ToLower(identifier) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *fakeUserStore) ByID(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (s *fakeUserStore) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.TOTPSecret = secret
	u.TOTPEnabled = false
	u.UpdatedAt = time.Now()
	return nil
}

func (s *fakeUserStore) EnableTOTP(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.TOTPEnabled = true
	u.UpdatedAt = time.Now()
	return nil
}

// adminCount reports how many stored users carry the admin flag.
func (s *fakeUserStore) adminCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.IsAdmin {
			n++
		}
	}
	return n
}

// fakeSessionLedger is an in-memory SessionLedger with the same CAS
// rotation semantics as the Postgres implementation.
type fakeSessionLedger struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newFakeSessionLedger() *fakeSessionLedger {
	return &fakeSessionLedger{sessions: map[string]*Session{}}
}

func (l *fakeSessionLedger) Create(ctx context.Context, s *Session) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *s
	l.sessions[c.ID] = &c
	return nil
}

func (l *fakeSessionLedger) FindActive(ctx context.Context, refreshToken, deviceID string, now time.Time) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sessions {
		if s.RefreshToken == refreshToken && s.DeviceID == deviceID && s.ExpiresAt.After(now) {
			c := *s
			return &c, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (l *fakeSessionLedger) Rotate(ctx context.Context, sessionID, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[sessionID]
	if !ok || s.RefreshToken != oldToken {
		return false, nil
	}
	s.RefreshToken = newToken
	s.ExpiresAt = expiresAt
	return true, nil
}

func (l *fakeSessionLedger) Delete(ctx context.Context, refreshToken, deviceID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, s := range l.sessions {
		if s.RefreshToken == refreshToken && s.DeviceID == deviceID {
			delete(l.sessions, id)
		}
	}
	return nil
}

func (l *fakeSessionLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// fakeLimiter allows a fixed number of attempts per (scope, key).
type fakeLimiter struct {
	mu       sync.Mutex
	limit    int
	attempts map[string]int
}

func newFakeLimiter(limit int) *fakeLimiter {
	return &fakeLimiter{limit: limit, attempts: map[string]int{}}
}

func (f *fakeLimiter) Allow(ctx context.Context, scope, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := scope + "/" + key
	f.attempts[k]++
	return f.attempts[k] <= f.limit, nil
}

func (f *fakeLimiter) Reset(ctx context.Context, scope, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attempts, scope+"/"+key)
	return nil
}

// testEnv bundles an engine with its fakes and a controllable clock.
type testEnv struct {
	engine   *Engine
	users    *fakeUserStore
	sessions *fakeSessionLedger
	now      time.Time
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()

	store, err := secrets.Load(secrets.Config{Path: t.TempDir() + "/secrets.conf"})
	if err != nil {
		t.Fatalf("loading secrets: %v", err)
	}

	env := &testEnv{
		users:    newFakeUserStore(),
		sessions: newFakeSessionLedger(),
		now:      time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}

	cfg := Config{
		Users:    env.users,
		Sessions: env.sessions,
		Secrets:  store,
		Password: password.Config{Cost: 4},
		Logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	engine.now = func() time.Time { return env.now }
	env.engine = engine
	return env
}

const strongPassword = "correct horse battery staple 42!"

// register creates a confirmed-2FA account and returns its TOTP secret.
func (env *testEnv) register(t *testing.T, username, email string) (user *User, secret string) {
	t.Helper()
	ctx := context.Background()

	user, err := env.engine.Register(ctx, username, email, strongPassword)
	if err != nil {
		t.Fatalf("registering %s: %v", username, err)
	}

	enrollment, err := env.engine.EnrollTwoFactor(ctx, PasswordProof{Identifier: username, Password: strongPassword})
	if err != nil {
		t.Fatalf("enrolling %s: %v", username, err)
	}
	code := totpCode(t, enrollment.Secret, env.now)
	if err := env.engine.ConfirmTwoFactor(ctx, PasswordProof{Identifier: username, Password: strongPassword}, code); err != nil {
		t.Fatalf("confirming %s: %v", username, err)
	}
	return user, enrollment.Secret
}

func mustLogin(t *testing.T, env *testEnv, identifier, secret, deviceID string) *LoginResult {
	t.Helper()
	code := totpCode(t, secret, env.now)
	result, err := env.engine.Login(context.Background(), identifier, strongPassword, code, deviceID)
	if err != nil {
		t.Fatalf("login as %s: %v", identifier, err)
	}
	return result
}

// totpCode computes the code a correctly provisioned authenticator app
// would show for secret at time at.
func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := pqtotp.GenerateCodeCustom(secret, at, pqtotp.ValidateOpts{
		Period:    30,
		Digits:    pqotp.DigitsSix,
		Algorithm: pqotp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generating totp code: %v", err)
	}
	return code
}
