package authcore

import (
	"encoding/base64"
	"errors"
	"time"
)

// Config is the complete engine configuration. Instances are intended to be
// configured during initialization and then treated as immutable.
type Config struct {
	JWT        JWTConfig
	TwoFactor  TwoFactorConfig
	Lockout    LockoutConfig
	Encryption EncryptionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig

	// RedisPrefix namespaces every ephemeral key this engine writes.
	RedisPrefix string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing and lifetimes.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SigningMethod is "hs256" (default) or "rs256".
	SigningMethod string
	// PrivateKey is the HS256 secret or a PEM-encoded RSA private key.
	PrivateKey []byte
	// PublicKey is a PEM-encoded RSA public key (rs256 verify-only).
	PublicKey []byte
	Issuer    string
	Leeway    time.Duration
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig configures enrollment and the login challenge cycle.
type TwoFactorConfig struct {
	// Issuer is the label shown in authenticator apps.
	Issuer string
	// SetupTTL bounds the window between Setup and VerifySetup.
	SetupTTL time.Duration
	// ChallengeTTL bounds the window between CreateChallenge and
	// VerifyChallenge.
	ChallengeTTL    time.Duration
	BackupCodeCount int
	// BackupCodeCost is the bcrypt cost for hashing recovery codes.
	BackupCodeCost int
}

// LockoutConfig configures the failed-attempt counter consulted by
// VerifyChallenge.
type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// EncryptionConfig configures secret encryption at rest.
type EncryptionConfig struct {
	// KeyBase64 is the base64 encoding of a 32-byte AES-256 key.
	KeyBase64 string
}

// AuditConfig controls the async observer dispatcher. The durable audit
// trail is always written; this only affects the optional sink.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the defaults New starts from. Callers still have to
// provide signing and encryption key material.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    720 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "authcore",
		},
		TwoFactor: TwoFactorConfig{
			Issuer:          "authcore",
			SetupTTL:        15 * time.Minute,
			ChallengeTTL:    5 * time.Minute,
			BackupCodeCount: 10,
			BackupCodeCost:  10,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		RedisPrefix: "ac",
	}
}

// Validate checks invariants that Build depends on.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.SigningMethod != "hs256" && c.JWT.SigningMethod != "rs256" {
		return errors.New("JWT SigningMethod must be hs256 or rs256")
	}
	if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 {
		return errors.New("JWT requires signing key material")
	}
	if c.TwoFactor.Issuer == "" {
		return errors.New("TwoFactor Issuer must be set")
	}
	if c.TwoFactor.SetupTTL <= 0 {
		return errors.New("TwoFactor SetupTTL must be > 0")
	}
	if c.TwoFactor.ChallengeTTL <= 0 {
		return errors.New("TwoFactor ChallengeTTL must be > 0")
	}
	if c.TwoFactor.BackupCodeCount <= 0 {
		return errors.New("TwoFactor BackupCodeCount must be > 0")
	}
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if _, err := c.Encryption.key(); err != nil {
		return err
	}
	return nil
}

func (e EncryptionConfig) key() ([]byte, error) {
	if e.KeyBase64 == "" {
		return nil, errors.New("Encryption KeyBase64 must be set")
	}
	key, err := base64.StdEncoding.DecodeString(e.KeyBase64)
	if err != nil {
		return nil, errors.New("Encryption KeyBase64 is not valid base64")
	}
	if len(key) != 32 {
		return nil, errors.New("Encryption key must decode to 32 bytes")
	}
	return key, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
