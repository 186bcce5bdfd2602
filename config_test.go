package authcore

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %v", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 720*time.Hour {
		t.Fatalf("unexpected refresh ttl %v", cfg.JWT.RefreshTTL)
	}
	if cfg.TwoFactor.SetupTTL != 15*time.Minute || cfg.TwoFactor.ChallengeTTL != 5*time.Minute {
		t.Fatalf("unexpected two-factor ttls %+v", cfg.TwoFactor)
	}
	if cfg.TwoFactor.BackupCodeCount != 10 {
		t.Fatalf("unexpected backup code count %d", cfg.TwoFactor.BackupCodeCount)
	}
	if cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.Window != 15*time.Minute {
		t.Fatalf("unexpected lockout config %+v", cfg.Lockout)
	}
	if cfg.RedisPrefix == "" {
		t.Fatal("expected redis prefix")
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, "AccessTTL"},
		{"zero refresh ttl", func(c *Config) { c.JWT.RefreshTTL = 0 }, "RefreshTTL"},
		{"refresh below access", func(c *Config) { c.JWT.RefreshTTL = time.Minute }, "RefreshTTL"},
		{"bad signing method", func(c *Config) { c.JWT.SigningMethod = "none" }, "SigningMethod"},
		{"no key material", func(c *Config) { c.JWT.PrivateKey = nil; c.JWT.PublicKey = nil }, "key material"},
		{"empty issuer", func(c *Config) { c.TwoFactor.Issuer = "" }, "Issuer"},
		{"zero setup ttl", func(c *Config) { c.TwoFactor.SetupTTL = 0 }, "SetupTTL"},
		{"zero challenge ttl", func(c *Config) { c.TwoFactor.ChallengeTTL = 0 }, "ChallengeTTL"},
		{"zero backup count", func(c *Config) { c.TwoFactor.BackupCodeCount = 0 }, "BackupCodeCount"},
		{"zero lockout attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }, "MaxAttempts"},
		{"zero lockout window", func(c *Config) { c.Lockout.Window = 0 }, "Window"},
		{"missing encryption key", func(c *Config) { c.Encryption.KeyBase64 = "" }, "KeyBase64"},
		{"bad encryption key", func(c *Config) { c.Encryption.KeyBase64 = "not-base64!!" }, "base64"},
		{"short encryption key", func(c *Config) { c.Encryption.KeyBase64 = "c2hvcnQ=" }, "32 bytes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfigValidateAccepts(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected missing redis rejected")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected missing store rejected")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).WithStore(newFakeStore()).Build(); err == nil {
		t.Fatal("expected missing user provider rejected")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	builder := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithStore(newFakeStore()).
		WithUserProvider(newFakeUsers())

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected second Build rejected")
	}
}
