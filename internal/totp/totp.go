// Package totp generates shared secrets and verifies time-based one-time
// codes for authenticator apps.
package totp

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the code rotation interval in seconds.
	Period = 30
	// Skew is the number of adjacent periods accepted on either side.
	Skew = 1
	// Digits is the code length.
	Digits = 6

	secretBytes = 20
	qrImageSize = 256
)

// Enrollment is the result of generating a fresh shared secret.
type Enrollment struct {
	// Secret is the base32-encoded shared secret for manual entry.
	Secret string
	// URI is the otpauth:// provisioning URI.
	URI string
	// QRCode is the provisioning URI rendered as a PNG data URI.
	QRCode string
}

// Generate mints a 160-bit shared secret labelled with issuer and account.
func Generate(issuer, account string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		SecretSize:  secretBytes,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Verify reports whether code is valid for secret at the given instant,
// tolerating one period of clock drift on either side. It fails closed:
// malformed secrets, malformed codes, and internal errors all return false.
func Verify(secret, code string, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != Digits {
		return false
	}

	ok, err := totp.ValidateCustom(trimmed, secret, now.UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}
