// Package secrets manages the three process-wide cryptographic secrets:
// the access-token signing key, the refresh-token signing key, and the
// symmetric encryption key handed to the mail-config encryption layer.
//
// The bundle is generated once at first start and persisted to a key=value
// file outside the database, so database loss and secret loss stay
// independent failure modes. Explicit operator configuration takes
// precedence over the persisted copy and supports key rotation.
//
// A location that cannot be read or written is fatal: starting with
// ephemeral secrets would silently invalidate every session and every
// encrypted mail-server password on the next restart.
package secrets

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// KeyBytes is the size of each secret: 256 bits for HMAC signing and for
// the AES-256 encryption key.
const KeyBytes = 32

const (
	fileKeyAccess     = "access_token_key"
	fileKeyRefresh    = "refresh_token_key"
	fileKeyEncryption = "encryption_key"
)

// Bundle holds the three decoded secrets.
type Bundle struct {
	AccessTokenKey  []byte
	RefreshTokenKey []byte
	EncryptionKey   []byte
}

// Config points at the persisted secrets file and optionally overrides the
// bundle. Overrides are base64 and only take effect when all three are set.
type Config struct {
	Path string

	AccessTokenKey  string
	RefreshTokenKey string
	EncryptionKey   string
}

// Store is the loaded process-wide secrets bundle plus provenance metadata
// used by the admin backup export.
type Store struct {
	bundle   Bundle
	path     string
	modTime  time.Time
	override bool
}

// Load resolves the secrets bundle. Resolution order, first match wins:
// full operator override, persisted file, fresh generation (persisted
// before first use).
func Load(cfg Config) (*Store, error) {
	if cfg.AccessTokenKey != "" || cfg.RefreshTokenKey != "" || cfg.EncryptionKey != "" {
		bundle, err := decodeOverride(cfg)
		if err != nil {
			return nil, err
		}
		return &Store{bundle: bundle, path: cfg.Path, override: true}, nil
	}

	if cfg.Path == "" {
		return nil, errors.New("secrets: no file path configured")
	}

	bundle, modTime, err := readFile(cfg.Path)
	if err == nil {
		return &Store{bundle: bundle, path: cfg.Path, modTime: modTime}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return generate(cfg.Path)
}

// Bundle returns the loaded secrets.
func (s *Store) Bundle() Bundle {
	return s.bundle
}

// EncryptionKey is the symmetric key exposed to the mail-config encryption
// collaborator. This core does not encrypt anything itself.
func (s *Store) EncryptionKey() []byte {
	return s.bundle.EncryptionKey
}

// Path is the location of the persisted secrets file.
func (s *Store) Path() string {
	return s.path
}

// ModTime is the last-modified timestamp of the persisted file, or zero
// when the bundle came from an operator override.
func (s *Store) ModTime() time.Time {
	return s.modTime
}

// FromOverride reports whether the bundle came from operator configuration
// rather than the persisted file.
func (s *Store) FromOverride() bool {
	return s.override
}

func decodeOverride(cfg Config) (Bundle, error) {
	if cfg.AccessTokenKey == "" || cfg.RefreshTokenKey == "" || cfg.EncryptionKey == "" {
		return Bundle{}, errors.New("secrets: override requires all three keys")
	}
	var bundle Bundle
	var err error
	if bundle.AccessTokenKey, err = decodeKey(cfg.AccessTokenKey); err != nil {
		return Bundle{}, fmt.Errorf("secrets: access token key override: %w", err)
	}
	if bundle.RefreshTokenKey, err = decodeKey(cfg.RefreshTokenKey); err != nil {
		return Bundle{}, fmt.Errorf("secrets: refresh token key override: %w", err)
	}
	if bundle.EncryptionKey, err = decodeKey(cfg.EncryptionKey); err != nil {
		return Bundle{}, fmt.Errorf("secrets: encryption key override: %w", err)
	}
	return bundle, nil
}

func decodeKey(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}
	if len(raw) != KeyBytes {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeyBytes, len(raw))
	}
	return raw, nil
}

// readFile parses the key=value secrets file, tolerating comment and blank
// lines. A file that exists but does not carry all three keys is corrupt
// and reported as an error, never silently regenerated: regeneration would
// orphan every existing session and encrypted credential.
func readFile(path string) (Bundle, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return Bundle{}, time.Time{}, err
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return Bundle{}, time.Time{}, fmt.Errorf("secrets: malformed line in %s", path)
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return Bundle{}, time.Time{}, err
	}

	var bundle Bundle
	for _, entry := range []struct {
		name string
		dst  *[]byte
	}{
		{fileKeyAccess, &bundle.AccessTokenKey},
		{fileKeyRefresh, &bundle.RefreshTokenKey},
		{fileKeyEncryption, &bundle.EncryptionKey},
	} {
		encoded, ok := values[entry.name]
		if !ok {
			return Bundle{}, time.Time{}, fmt.Errorf("secrets: %s missing %s", path, entry.name)
		}
		raw, err := decodeKey(encoded)
		if err != nil {
			return Bundle{}, time.Time{}, fmt.Errorf("secrets: %s entry %s: %w", path, entry.name, err)
		}
		*entry.dst = raw
	}

	info, err := f.Stat()
	if err != nil {
		return Bundle{}, time.Time{}, err
	}
	return bundle, info.ModTime(), nil
}

// generate creates a fresh bundle and persists it before returning. The
// file lands via write-to-temp plus link, so a concurrent generator that
// loses the race observes a complete file and adopts it instead of its own
// candidate.
func generate(path string) (*Store, error) {
	bundle := Bundle{
		AccessTokenKey:  make([]byte, KeyBytes),
		RefreshTokenKey: make([]byte, KeyBytes),
		EncryptionKey:   make([]byte, KeyBytes),
	}
	for _, key := range [][]byte{bundle.AccessTokenKey, bundle.RefreshTokenKey, bundle.EncryptionKey} {
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("secrets: generating key material: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("secrets: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".secrets-*")
	if err != nil {
		return nil, fmt.Errorf("secrets: %s is not writable: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.WriteString(encodeFile(bundle, time.Now())); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			// Lost the generation race; the winner's file is complete.
			bundle, modTime, readErr := readFile(path)
			if readErr != nil {
				return nil, readErr
			}
			return &Store{bundle: bundle, path: path, modTime: modTime}, nil
		}
		return nil, fmt.Errorf("secrets: persisting %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &Store{bundle: bundle, path: path, modTime: info.ModTime()}, nil
}

func encodeFile(bundle Bundle, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# homebase auth secrets. generated %s. keep this file safe.\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s=%s\n", fileKeyAccess, base64.StdEncoding.EncodeToString(bundle.AccessTokenKey))
	fmt.Fprintf(&b, "%s=%s\n", fileKeyRefresh, base64.StdEncoding.EncodeToString(bundle.RefreshTokenKey))
	fmt.Fprintf(&b, "%s=%s\n", fileKeyEncryption, base64.StdEncoding.EncodeToString(bundle.EncryptionKey))
	return b.String()
}
