package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func TestExportBackupAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, _ := env.register(t, "alice", "alice@example.com")
	regular, _ := env.register(t, "bob", "bob@example.com")

	export, err := env.engine.ExportBackup(ctx, admin.ID)
	if err != nil {
		t.Fatalf("admin export: %v", err)
	}
	for name, encoded := range map[string]string{
		"access":     export.AccessTokenKey,
		"refresh":    export.RefreshTokenKey,
		"encryption": export.EncryptionKey,
	} {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(raw) != 32 {
			t.Fatalf("%s key: expected 32 base64 bytes, got %q (%v)", name, encoded, err)
		}
	}
	if export.Path == "" || export.GeneratedAt.IsZero() {
		t.Fatal("export must carry file provenance")
	}

	if _, err := env.engine.ExportBackup(ctx, regular.ID); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("non-admin export must be refused, got %v", err)
	}
	if _, err := env.engine.ExportBackup(ctx, "no-such-user"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("unknown user export must be refused, got %v", err)
	}
}

func TestEncryptionKeyExposed(t *testing.T) {
	env := newTestEnv(t)
	key := env.engine.EncryptionKey()
	if len(key) != 32 {
		t.Fatalf("expected a 32-byte encryption key, got %d", len(key))
	}
}
