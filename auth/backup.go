package auth

import (
	"context"
	"encoding/base64"
	"time"
)

// BackupExport is the secrets bundle in portable form. Restoring the three
// keys onto a new machine (plus a database dump) fully revives a
// deployment; losing them permanently orphans every session and every
// encrypted mail credential.
type BackupExport struct {
	AccessTokenKey  string    `json:"accessTokenKey"`
	RefreshTokenKey string    `json:"refreshTokenKey"`
	EncryptionKey   string    `json:"encryptionKey"`
	Path            string    `json:"path"`
	GeneratedAt     time.Time `json:"generatedAt,omitzero"`
	FromOverride    bool      `json:"fromOverride"`
}

// ExportBackup returns the secrets bundle for offline safekeeping. Only the
// admin account may call it; any other caller, including an unknown user
// id, gets ErrNotAdmin.
func (e *Engine) ExportBackup(ctx context.Context, userID string) (*BackupExport, error) {
	user, err := e.users.ByID(ctx, userID)
	if err != nil {
		return nil, ErrNotAdmin
	}
	if !user.IsAdmin {
		return nil, ErrNotAdmin
	}

	bundle := e.secrets.Bundle()
	e.log.Info().Str("user_id", userID).Msg("secrets backup exported")
	return &BackupExport{
		AccessTokenKey:  base64.StdEncoding.EncodeToString(bundle.AccessTokenKey),
		RefreshTokenKey: base64.StdEncoding.EncodeToString(bundle.RefreshTokenKey),
		EncryptionKey:   base64.StdEncoding.EncodeToString(bundle.EncryptionKey),
		Path:            e.secrets.Path(),
		GeneratedAt:     e.secrets.ModTime(),
		FromOverride:    e.secrets.FromOverride(),
	}, nil
}
