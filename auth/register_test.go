package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mlenahan/homebase/auth/password"
)

func TestRegisterWeakPasswordCreatesNoUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Register(ctx, "alice", "alice@example.com", "short1!")
	var policyErr *password.PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected a policy error, got %v", err)
	}

	if _, err := env.users.ByIdentifier(ctx, "alice"); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("rejected registration must leave no user behind")
	}
}

func TestRegisterOverlongPasswordCreatesNoUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Longer than bcrypt's 72-byte input; must fail as a policy error, not
	// surface a hashing failure.
	_, err := env.engine.Register(ctx, "carol", "carol@example.com", strings.Repeat("a1!", 30))
	var policyErr *password.PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected a policy error, got %v", err)
	}

	if _, err := env.users.ByIdentifier(ctx, "carol"); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("rejected registration must leave no user behind")
	}
}

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice, err := env.engine.Register(ctx, "alice", "alice@example.com", strongPassword)
	if err != nil {
		t.Fatalf("registering alice: %v", err)
	}
	if !alice.IsAdmin {
		t.Fatal("first user must be admin")
	}
	if alice.PasswordHash != "" || alice.TOTPSecret != "" {
		t.Fatal("returned user must be sanitized")
	}

	bob, err := env.engine.Register(ctx, "bob", "bob@example.com", strongPassword)
	if err != nil {
		t.Fatalf("registering bob: %v", err)
	}
	if bob.IsAdmin {
		t.Fatal("second user must not be admin")
	}
}

func TestRegisterDuplicateIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, "alice", "alice@example.com", strongPassword); err != nil {
		t.Fatalf("registering alice: %v", err)
	}

	for _, attempt := range []struct{ username, email string }{
		{"alice", "other@example.com"},
		{"other", "alice@example.com"},
	} {
		_, err := env.engine.Register(ctx, attempt.username, attempt.email, strongPassword)
		if !errors.Is(err, ErrDuplicateUser) {
			t.Fatalf("expected ErrDuplicateUser for %s/%s, got %v", attempt.username, attempt.email, err)
		}
	}
}

func TestRegisterConcurrentElectsOneAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const racers = 16
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user%02d", i)
			if _, err := env.engine.Register(ctx, name, name+"@example.com", strongPassword); err != nil {
				t.Errorf("registering %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	if got := env.users.adminCount(); got != 1 {
		t.Fatalf("expected exactly one admin, got %d", got)
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, "alice", "  Alice@Example.COM ", strongPassword); err != nil {
		t.Fatalf("registering alice: %v", err)
	}
	if _, err := env.users.ByIdentifier(ctx, "alice@example.com"); err != nil {
		t.Fatalf("expected lowercased email to resolve, got %v", err)
	}
}
