package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mlenahan/homebase/auth"
)

func newMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("opening sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

var insertUserPattern = regexp.QuoteMeta(
	`INSERT INTO users (id, username, email, password_hash, is_admin)
VALUES ($1, $2, $3, $4, $5 AND NOT EXISTS (SELECT 1 FROM users WHERE is_admin))
RETURNING is_admin, created_at, updated_at`)

func TestCreateFirstUserElectedAdmin(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(insertUserPattern).
		WithArgs("u1", "alice", "alice@example.com", "hash", true).
		WillReturnRows(sqlmock.NewRows([]string{"is_admin", "created_at", "updated_at"}).
			AddRow(true, now, now))

	created, err := repo.Create(context.Background(), &auth.User{
		ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.IsAdmin {
		t.Fatal("expected the first user to be elected admin")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateRetriesAsRegularAfterAdminRace(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(insertUserPattern).
		WithArgs("u2", "bob", "bob@example.com", "hash", true).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: adminIndexName})
	mock.ExpectQuery(insertUserPattern).
		WithArgs("u2", "bob", "bob@example.com", "hash", false).
		WillReturnRows(sqlmock.NewRows([]string{"is_admin", "created_at", "updated_at"}).
			AddRow(false, now, now))

	created, err := repo.Create(context.Background(), &auth.User{
		ID: "u2", Username: "bob", Email: "bob@example.com", PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.IsAdmin {
		t.Fatal("race loser must land as a regular user")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateDuplicateUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(insertUserPattern).
		WithArgs("u3", "alice", "other@example.com", "hash", true).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), &auth.User{
		ID: "u3", Username: "alice", Email: "other@example.com", PasswordHash: "hash",
	})
	if !errors.Is(err, auth.ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
}

func TestByIdentifier(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, email, password_hash, totp_secret, totp_enabled, is_admin, created_at, updated_at FROM users WHERE username = $1 OR email = lower($1)`)).
		WithArgs("Alice@Example.COM").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "totp_secret", "totp_enabled", "is_admin", "created_at", "updated_at"}).
			AddRow("u1", "alice", "alice@example.com", "hash", "SECRET", true, true, now, now))

	// The query folds the email side to lowercase, so mixed-case input
	// reaches the stored row.
	user, err := repo.ByIdentifier(context.Background(), "Alice@Example.COM")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if user.ID != "u1" || !user.TOTPEnabled {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestByIdentifierNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE username = \$1 OR email = lower\(\$1\)`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.ByIdentifier(context.Background(), "nobody"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSetTOTPSecret(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET totp_secret = $2, totp_enabled = FALSE, updated_at = now() WHERE id = $1`)).
		WithArgs("u1", "SECRET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetTOTPSecret(context.Background(), "u1", "SECRET"); err != nil {
		t.Fatalf("set secret: %v", err)
	}
}

func TestEnableTOTPUnknownUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET totp_enabled = TRUE, updated_at = now() WHERE id = $1`)).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.EnableTOTP(context.Background(), "ghost"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
