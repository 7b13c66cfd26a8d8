// Package totp wraps time-based one-time password enrollment and
// verification for the homebase auth core.
//
// Codes are 6 digits over 30-second steps. Verification tolerates a fixed
// clock drift of two steps in either direction; the window is not
// configurable per call.
package totp

import (
	"bytes"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// period is the TOTP step size in seconds.
	period = 30
	// skew is the accepted drift in steps on each side of now.
	skew = 2
	// secretSize is the raw secret length in bytes (160 bits).
	secretSize = 20
	// qrSize is the side length in pixels of the provisioning QR image.
	qrSize = 200
)

var validateOpts = totp.ValidateOpts{
	Period:    period,
	Skew:      skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Config holds TOTP parameters. Issuer is the name shown by authenticator
// apps next to the account label.
type Config struct {
	Issuer string
}

// Engine generates enrollment secrets and verifies submitted codes.
type Engine struct {
	issuer string
}

// New returns an Engine for the given issuer.
func New(cfg Config) *Engine {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "homebase"
	}
	return &Engine{issuer: issuer}
}

// Enrollment is the material handed to the client during 2FA enrollment.
// Secret is base32 without padding; QRPNG is a PNG rendering of URL.
type Enrollment struct {
	Secret string
	URL    string
	QRPNG  []byte
}

// Enroll generates a fresh random secret bound to account and renders the
// otpauth provisioning URL and QR image. The secret is not persisted here;
// the caller stores it against the user.
func (e *Engine) Enroll(account string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account,
		Period:      period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRPNG:  buf.Bytes(),
	}, nil
}

// Verify reports whether code matches secret at time now within the fixed
// drift window. Anything other than exactly 6 ASCII digits is rejected
// before any TOTP computation.
func (e *Engine) Verify(secret, code string, now time.Time) bool {
	if !isSixDigits(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now, validateOpts)
	if err != nil {
		return false
	}
	return ok
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
